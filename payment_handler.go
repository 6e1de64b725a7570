package ucp

import (
	"context"
	"net/http"
	"time"

	"github.com/openucp/ucp-go/vault"
)

// PaymentTokenProvider owns the payment token lifecycle. Implement this
// interface to expose a tokenization backend through the UCP payment token
// routes; [NewVaultProvider] adapts the vault core in this module.
type PaymentTokenProvider interface {
	Tokenize(ctx context.Context, req TokenizeRequestPayload) (*TokenizeResponsePayload, error)
	Detokenize(ctx context.Context, token string, req DetokenizeRequestPayload) (*DetokenizeResponsePayload, error)
	InvalidateToken(ctx context.Context, checkoutSessionID, token string) (bool, error)
	HandlerDeclaration(ctx context.Context) (*vault.Declaration, error)
}

// PaymentTokenHandler exposes the UCP payment token API over net/http.
type PaymentTokenHandler struct {
	service PaymentTokenProvider
	mux     *http.ServeMux
	cfg     config
}

// NewPaymentTokenHandler wires the payment token routes to the provided
// [PaymentTokenProvider].
func NewPaymentTokenHandler(service PaymentTokenProvider, opts ...Option) *PaymentTokenHandler {
	if service == nil {
		panic("ucp: payment token service is required")
	}
	cfg := config{
		maxClockSkew: 5 * time.Minute,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.requireSignedRequests && cfg.signatureVerifier == nil {
		panic("ucp: signature verifier required when signed requests are enforced")
	}
	h := &PaymentTokenHandler{
		service: service,
		mux:     http.NewServeMux(),
		cfg:     cfg,
	}
	var middleware []Middleware
	if mw := newRateLimitMiddleware(cfg.limiter); mw != nil {
		middleware = append(middleware, mw)
	}
	if mw := newSignatureMiddleware(signatureMiddlewareConfig{
		Verifier:      cfg.signatureVerifier,
		RequireSigned: cfg.requireSignedRequests,
		MaxClockSkew:  cfg.maxClockSkew,
		Clock:         cfg.clock,
	}); mw != nil {
		middleware = append(middleware, Middleware(mw))
	}
	if cfg.authenticator != nil {
		middleware = append(middleware, h.authenticationMiddleware)
	}
	middleware = append(middleware, cfg.middleware...)
	h.registerRoutes(middleware...)
	return h
}

// ServeHTTP satisfies http.Handler.
func (h *PaymentTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestCtx := requestContextFromRequest(r)
	ctx := contextWithRequestContext(r.Context(), requestCtx)
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (h *PaymentTokenHandler) registerRoutes(middleware ...Middleware) {
	h.mux.HandleFunc("POST /agentic_commerce/payment_tokens", applyMiddleware(h.handleTokenize, middleware...))
	h.mux.HandleFunc("POST /agentic_commerce/payment_tokens/{token}/retrieve", applyMiddleware(h.handleDetokenize, middleware...))
	h.mux.HandleFunc("DELETE /agentic_commerce/payment_tokens/{token}", applyMiddleware(h.handleInvalidate, middleware...))
	h.mux.HandleFunc("GET /agentic_commerce/payment_handler", applyMiddleware(h.handleDeclaration, middleware...))
}

func (h *PaymentTokenHandler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequestPayload
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	resp, err := h.service.Tokenize(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PaymentTokenHandler) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeJSONError(w, NewInvalidRequestError("token is required"))
		return
	}
	var req DetokenizeRequestPayload
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if err := h.checkDelegation(req); err != nil {
		writeJSONError(w, err)
		return
	}
	resp, err := h.service.Detokenize(r.Context(), token, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkDelegation enforces delegation grants when a codec is configured: a
// delegated retrieval must present a grant bound to the checkout session
// and the delegate identity it claims.
func (h *PaymentTokenHandler) checkDelegation(req DetokenizeRequestPayload) *Error {
	if h.cfg.delegationCodec == nil || req.DelegatedTo == nil {
		return nil
	}
	if req.DelegatedTo.Grant == "" {
		return NewHTTPError(http.StatusForbidden, InvalidRequest, InvalidDelegation, "delegated_to.grant is required")
	}
	if _, ok := h.cfg.delegationCodec.Verify(req.DelegatedTo.Grant, req.Binding.CheckoutSessionID, req.DelegatedTo.Identity); !ok {
		return NewHTTPError(http.StatusForbidden, InvalidRequest, InvalidDelegation, "delegation grant is invalid for this checkout and delegate")
	}
	return nil
}

func (h *PaymentTokenHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeJSONError(w, NewInvalidRequestError("token is required"))
		return
	}
	checkoutSessionID := r.URL.Query().Get("checkout_session_id")
	if checkoutSessionID == "" {
		writeJSONError(w, NewInvalidRequestError("checkout_session_id query parameter is required"))
		return
	}
	invalidated, err := h.service.InvalidateToken(r.Context(), checkoutSessionID, token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InvalidateResponsePayload{Invalidated: invalidated})
}

func (h *PaymentTokenHandler) handleDeclaration(w http.ResponseWriter, r *http.Request) {
	decl, err := h.service.HandlerDeclaration(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decl)
}
