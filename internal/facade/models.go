package facade

import (
	"context"
	"net/http"
	"time"

	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []model.Info `json:"data"`
}

// handleModels publishes list-models on the well-known topic, waits for
// the accumulator to compile responses within the auction window, and
// returns the aggregated list. Concurrent rounds are serialized since the
// compiled-list rendezvous key is shared across requests.
func (f *Facade) handleModels(w http.ResponseWriter, r *http.Request) {
	f.modelsMu.Lock()
	defer f.modelsMu.Unlock()

	ctx := r.Context()

	if err := f.broadcast.WaitForMesh(ctx, 1, f.cfg.MeshWaitTimeout); err != nil {
		http.Error(w, "no mesh: "+err.Error(), http.StatusInternalServerError)
		return
	}

	f.accum.Reset()
	f.rendezvous.Clear(model.ModelListCompiledKey)

	env := &wireproto.Envelope{
		Role:           wireproto.RoleListModels,
		Timestamp:      time.Now().UnixMilli(),
		FromWalletAddr: f.cfg.OwnWalletAddr,
	}
	if err := wireproto.Sign(env, f.signer); err != nil {
		http.Error(w, "sign list-models: "+err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := wireproto.Pack(env)
	if err != nil {
		http.Error(w, "pack list-models: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := f.broadcast.Publish(ctx, data); err != nil {
		http.Error(w, "publish list-models: "+err.Error(), http.StatusInternalServerError)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.AuctionWaitTime)
	defer cancel()

	v, err := f.rendezvous.Wait(waitCtx, model.ModelListCompiledKey)
	if err != nil {
		f.rendezvous.Clear(model.ModelListCompiledKey)
		http.Error(w, "timed out waiting for model list", http.StatusInternalServerError)
		return
	}

	models, _ := v.([]model.Info)
	writeJSON(w, http.StatusOK, modelsResponse{Object: "list", Data: models})
}
