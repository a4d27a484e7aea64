package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

func (p *Processor) handleListModels(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	models, err := p.model.GetModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return p.reply(ctx, wireproto.RoleListModelsResponse, sourcePeerID, env.FromWalletAddr, env.ID, map[string]interface{}{
		"models": models,
	})
}

func (p *Processor) handleListModelsResponse(env *wireproto.Envelope) error {
	raw, _ := env.Payload["models"].([]interface{})
	models := make([]model.Info, 0, len(raw))
	for _, m := range raw {
		mm, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := mm["id"].(string)
		owned, _ := mm["owned_by"].(string)
		models = append(models, model.Info{ID: id, Object: "model", OwnedBy: owned})
	}
	p.accum.AddModel(models)
	return nil
}

func (p *Processor) handleQuoteRequest(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	modelName, _ := env.Payload["model"].(string)
	if !p.cfg.ServedModels[modelName] {
		return nil
	}

	status, err := p.ledger.CheckIfOptedInToAsset(ctx, env.FromWalletAddr, p.cfg.ProtocolAssetID)
	if err != nil {
		return fmt.Errorf("check opt-in for %s: %w", env.FromWalletAddr, err)
	}
	if !status.OptedIn {
		return nil
	}

	inputs := decodeInputs(env.Payload["inputs"])
	tokens, err := p.model.CountEmbeddings(ctx, modelName, inputs)
	if err != nil {
		return fmt.Errorf("count tokens for %s: %w", modelName, err)
	}
	quote, ok := price(p.cfg.PricingPipeline, modelName, tokens)
	if !ok {
		return nil
	}

	return p.reply(ctx, wireproto.RoleQuoteResponse, sourcePeerID, env.FromWalletAddr, env.ID, map[string]interface{}{
		"model":  modelName,
		"inputs": inputs,
		"quote": map[string]interface{}{
			"model":          modelName,
			"inputCount":     len(inputs),
			"tokenCount":     tokens,
			"pricePerMillion": quote.RatePerMillion,
			"totalPrice":     quote.Price,
			"addr":           p.cfg.OwnWalletAddr,
		},
	})
}

func decodeInputs(raw interface{}) []model.ChatMessage {
	list, _ := raw.([]interface{})
	out := make([]model.ChatMessage, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		out = append(out, model.ChatMessage{Role: role, Content: content})
	}
	return out
}

func (p *Processor) handleQuoteResponse(env *wireproto.Envelope, sourcePeerID peer.ID) error {
	quote, _ := env.Payload["quote"].(map[string]interface{})
	totalPrice, _ := quote["totalPrice"].(float64)

	p.auction.AddBid(auction.Bid{
		SessionID:  env.ID,
		FromAddr:   env.FromWalletAddr,
		SourcePeer: sourcePeerID,
		Quote:      quote,
		TotalPrice: totalPrice,
		ArrivedAt:  time.Now(),
	})
	return nil
}

func (p *Processor) handleQuoteAccepted(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	if !p.sess.Begin(env.ID, session.RoleProvider) {
		return nil
	}

	quote, _ := env.Payload["quote"].(map[string]interface{})
	totalPrice, _ := quote["totalPrice"].(float64)
	usdcBaseUnits := int64(totalPrice * 1_000_000)

	if err := p.ledger.CreateQuote(ctx, env.ID, env.FromWalletAddr, usdcBaseUnits); err != nil {
		p.sess.Drop(env.ID)
		return fmt.Errorf("create quote for %s: %w", env.ID, err)
	}
	p.sess.Transition(env.ID, session.StateContractCreatedSent)

	return p.reply(ctx, wireproto.RoleContractCreated, sourcePeerID, env.FromWalletAddr, env.ID, env.Payload)
}

func (p *Processor) handleContractCreated(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	if _, state, ok := p.sess.Lookup(env.ID); !ok || state != session.StateAccepted {
		return nil
	}

	quote, _ := env.Payload["quote"].(map[string]interface{})
	totalPrice, _ := quote["totalPrice"].(float64)
	usdcBaseUnits := int64(totalPrice * 1_000_000)

	if err := p.ledger.FundQuote(ctx, env.ID, usdcBaseUnits); err != nil {
		p.sess.Drop(env.ID)
		return fmt.Errorf("fund quote for %s: %w", env.ID, err)
	}
	p.sess.Transition(env.ID, session.StateContractSignedSent)

	return p.reply(ctx, wireproto.RoleContractSigned, sourcePeerID, env.FromWalletAddr, env.ID, env.Payload)
}

func (p *Processor) handleContractSigned(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	if !p.sess.Transition(env.ID, session.StateInferring) {
		return nil
	}

	status, err := p.ledger.VerifyQuoteFunded(ctx, env.ID)
	if err != nil {
		p.sess.Drop(env.ID)
		return fmt.Errorf("verify funded for %s: %w", env.ID, err)
	}

	quote, _ := env.Payload["quote"].(map[string]interface{})
	totalPrice, _ := quote["totalPrice"].(float64)
	required := int64(totalPrice * 1_000_000)

	if !status.Funded || status.USDCBaseUnits < required {
		p.sess.Drop(env.ID)
		return &Underfunded{SessionID: env.ID, Funded: status.USDCBaseUnits, Required: required}
	}

	modelName, _ := quote["model"].(string)
	inputs := decodeInputs(env.Payload["inputs"])

	completion, err := p.model.GetResponse(ctx, modelName, inputs)
	if err != nil {
		p.sess.Drop(env.ID)
		return fmt.Errorf("run inference for %s: %w", env.ID, err)
	}

	p.sess.Transition(env.ID, session.StateResponded)

	replyPayload := cloneMap(env.Payload)
	replyPayload["completion"] = completion

	return p.reply(ctx, wireproto.RoleInferenceResponse, sourcePeerID, env.FromWalletAddr, env.ID, replyPayload)
}

func (p *Processor) handleInferenceResponse(ctx context.Context, env *wireproto.Envelope, _ peer.ID) error {
	if !p.sess.Transition(env.ID, session.StatePaid) {
		return nil
	}

	completion, _ := env.Payload["completion"].(string)
	p.bus.Publish(InferenceResponsePrefix+env.ID, completion)

	quote, _ := env.Payload["quote"].(map[string]interface{})
	provider, _ := quote["addr"].(string)

	confirmation, err := p.ledger.CompleteQuote(ctx, env.ID, provider)
	if err != nil {
		return fmt.Errorf("complete quote for %s: %w", env.ID, err)
	}

	p.bus.Publish(SessionCompletePrefix+env.ID, confirmation)
	return nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
