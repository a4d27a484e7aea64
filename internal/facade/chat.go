package facade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/processor"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []model.ChatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int              `json:"index"`
	Message      model.ChatMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// handleChatCompletions drives one full customer-side negotiation: it
// constructs and publishes a quote-request, awaits the auction's winner,
// sends quote-accepted directly to that provider, and awaits the
// completion produced by the resulting inference-response.
func (f *Facade) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		http.Error(w, "model and messages are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ts := time.Now().UnixMilli()

	id, err := sessionID(ts, req)
	if err != nil {
		http.Error(w, "hash request body: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := f.broadcast.WaitForMesh(ctx, 1, f.cfg.MeshWaitTimeout); err != nil {
		http.Error(w, "no mesh: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if !f.sessions.Begin(id, session.RoleCustomer) {
		http.Error(w, "session id already in flight", http.StatusInternalServerError)
		return
	}

	inputs := make([]interface{}, 0, len(req.Messages))
	for _, m := range req.Messages {
		inputs = append(inputs, map[string]interface{}{"role": m.Role, "content": m.Content})
	}

	quoteReq := &wireproto.Envelope{
		Role:           wireproto.RoleQuoteRequest,
		ID:             id,
		Timestamp:      ts,
		FromWalletAddr: f.cfg.OwnWalletAddr,
		Payload: map[string]interface{}{
			"model":  req.Model,
			"inputs": inputs,
		},
	}
	if err := wireproto.Sign(quoteReq, f.signer); err != nil {
		f.sessions.Drop(id)
		http.Error(w, "sign quote-request: "+err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := wireproto.Pack(quoteReq)
	if err != nil {
		f.sessions.Drop(id)
		http.Error(w, "pack quote-request: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := f.broadcast.Publish(ctx, data); err != nil {
		f.sessions.Drop(id)
		http.Error(w, "publish quote-request: "+err.Error(), http.StatusInternalServerError)
		return
	}

	outerCtx, cancel := context.WithTimeout(ctx, f.cfg.OuterDeadline)
	defer cancel()

	v, err := f.rendezvous.Wait(outerCtx, auction.SelectedEventPrefix+id)
	if err != nil {
		f.rendezvous.Clear(auction.SelectedEventPrefix + id)
		f.sessions.Drop(id)
		http.Error(w, "timed out waiting for a quote", http.StatusGatewayTimeout)
		return
	}
	winner := v.(auction.Bid)

	if !f.sessions.Transition(id, session.StateQuoted) {
		http.Error(w, "session dropped before acceptance", http.StatusInternalServerError)
		return
	}

	quoteAccepted := &wireproto.Envelope{
		Role:           wireproto.RoleQuoteAccepted,
		ID:             id,
		Timestamp:      time.Now().UnixMilli(),
		FromWalletAddr: f.cfg.OwnWalletAddr,
		To:             winner.FromAddr,
		Payload:        map[string]interface{}{"quote": winner.Quote},
	}
	if err := wireproto.Sign(quoteAccepted, f.signer); err != nil {
		f.sessions.Drop(id)
		http.Error(w, "sign quote-accepted: "+err.Error(), http.StatusInternalServerError)
		return
	}
	acceptedData, err := wireproto.Pack(quoteAccepted)
	if err != nil {
		f.sessions.Drop(id)
		http.Error(w, "pack quote-accepted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if !f.sessions.Transition(id, session.StateAccepted) {
		http.Error(w, "session dropped before send", http.StatusInternalServerError)
		return
	}

	if err := f.router.Send(outerCtx, wireproto.RoleQuoteAccepted, acceptedData, winner.SourcePeer); err != nil {
		f.sessions.Drop(id)
		http.Error(w, "send quote-accepted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	completionVal, err := f.rendezvous.Wait(outerCtx, processor.InferenceResponsePrefix+id)
	if err != nil {
		f.rendezvous.Clear(processor.InferenceResponsePrefix + id)
		f.sessions.Drop(id)
		http.Error(w, "timed out waiting for the inference response", http.StatusGatewayTimeout)
		return
	}
	completion, _ := completionVal.(string)

	writeJSON(w, http.StatusOK, chatResponse{
		ID:     id,
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      model.ChatMessage{Role: "assistant", Content: completion},
			FinishReason: "stop",
		}},
	})
}

// sessionID computes the session id the rest of the system correlates
// on: the first 56 hex characters of sha256(ms-timestamp ‖ canonical-JSON(body)).
func sessionID(ts int64, req chatRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	generic, err := wireproto.DecodeGeneric(raw)
	if err != nil {
		return "", err
	}
	canonical, err := wireproto.Canonicalize(generic)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write(canonical)
	sum := hex.EncodeToString(h.Sum(nil))
	return sum[:56], nil
}
