package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/skobkin/nputop-web/internal/api"
	"github.com/skobkin/nputop-web/internal/config"
	"github.com/skobkin/nputop-web/internal/ingest"
	"github.com/skobkin/nputop-web/internal/monitor"
	"github.com/skobkin/nputop-web/internal/tab"
	"github.com/skobkin/nputop-web/internal/version"
)

const (
	readHeaderTimeout = 5 * time.Second
	wsSendQueueSize   = 16
)

// Server wraps the HTTP surface area of the application.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	monitor    *monitor.Manager
	store      *ingest.Store
	auth       *ingest.Authenticator

	maxWSClients       int64
	wsActive           atomic.Int64
	wsTotal            atomic.Uint64
	wsRejected         atomic.Uint64
	wsSent             atomic.Uint64
	wsDropped          atomic.Uint64
	wsConnIDs          atomic.Uint64
	ingestAuthFailures atomic.Uint64
}

// New assembles a Server with its handlers. A nil store disables ingest.
func New(cfg config.Config, logger *slog.Logger, monitorManager *monitor.Manager, store *ingest.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		monitor: monitorManager,
		store:   store,
		auth:    ingest.NewAuthenticator(cfg.Ingest.TokenSecret),
	}

	if cfg.WS.MaxClients > 0 {
		s.maxWSClients = int64(cfg.WS.MaxClients)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/readyz", s.handleReadyz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api", s.handleAPIDocs)
	mux.HandleFunc("/api/", s.handleAPIDocs)
	mux.HandleFunc("/api/tabs", s.handleAPITabs)
	mux.HandleFunc("/api/tabs/", s.handleAPITabSubresource)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", s.staticHandler())

	if cfg.EnablePrometheus {
		s.registerPrometheus(mux)
	}
	if cfg.EnablePprof {
		registerPprof(mux)
	}

	handler := s.withRequestLogging(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	info := s.readiness()
	statusCode := http.StatusOK
	if info.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, statusCode, info)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, version.Current())
}

func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	if r.URL.Path != "/api" && r.URL.Path != "/api/" {
		http.NotFound(w, r)
		return
	}

	logger := s.loggerFromContext(r.Context())
	data, err := embeddedAssets.ReadFile("assets/api.html")
	if err != nil {
		logger.Error("failed to read api docs asset", "err", err)
		http.Error(w, "missing api docs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		logger.Warn("failed to write api docs response", "err", err)
	}
}

func (s *Server) handleAPITabs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	views := []tab.View{}
	if s.monitor != nil {
		views = s.monitor.Views()
	}
	s.writeJSON(w, r, http.StatusOK, views)
}

func (s *Server) handleAPITabSubresource(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	const prefix = "/api/tabs/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	segments := strings.Split(rest, "/")
	if len(segments) == 0 || len(segments) > 2 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	if s.monitor == nil {
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return
	}

	tabID := segments[0]
	view, ok := s.monitor.Latest(tabID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		s.writeJSON(w, r, http.StatusOK, view)
		return
	}

	switch segments[1] {
	case "series":
		history, ok := s.monitor.Series(tabID)
		if !ok {
			http.Error(w, "charts disabled", http.StatusNotFound)
			return
		}
		s.writeJSON(w, r, http.StatusOK, history)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	logger := s.loggerFromContext(r.Context())
	if s.store == nil {
		http.Error(w, "ingest unavailable", http.StatusServiceUnavailable)
		return
	}

	if s.auth != nil {
		claims, err := s.auth.Authenticate(r)
		if err != nil {
			s.ingestAuthFailures.Add(1)
			logger.Warn("ingest rejected", "reason", "unauthorized", "err", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="ingest"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logger = logger.With("agent", claims.Agent)
	}

	body, err := ingest.Decompress(r.Header.Get("Content-Encoding"), r.Body)
	switch {
	case errors.Is(err, ingest.ErrUnsupportedEncoding):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		logger.Debug("invalid ingest body encoding", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	defer body.Close()

	batch, err := ingest.Decode(r.Header.Get("Content-Type"), body, s.cfg.Ingest.MaxBodyBytes)
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, ingest.ErrUnsupportedMediaType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		logger.Debug("invalid ingest payload", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if len(batch.Snapshots) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	accepted, err := s.store.PutBatch(batch)
	resp := api.IngestResponse{
		Accepted: accepted,
		Rejected: len(batch.Snapshots) - accepted,
	}
	if err != nil {
		resp.Errors = splitJoined(err)
	}

	status := http.StatusAccepted
	if accepted == 0 {
		status = http.StatusBadRequest
	}
	logger.Debug("ingest batch stored", "accepted", resp.Accepted, "rejected", resp.Rejected)
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	reqLogger := s.loggerFromContext(r.Context())
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.monitor == nil {
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return
	}

	if !s.reserveWS() {
		reqLogger.Warn("websocket rejected", "reason", "capacity")
		http.Error(w, "websocket capacity reached", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseWS()

	opts := &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		reqLogger.Warn("websocket accept failed", "err", err)
		return
	}

	connID := s.wsConnIDs.Add(1)
	s.wsTotal.Add(1)
	logger := reqLogger.With("ws_id", connID)
	defer closeWebsocket(logger, conn, websocket.StatusNormalClosure, "")

	outbound := newWSOutbound(wsSendQueueSize, &s.wsDropped)

	chartsMaxPoints := s.cfg.ChartPoints()
	features := map[string]bool{
		"charts": s.monitor.ChartsEnabled(),
		"ingest": s.store != nil,
	}
	defaultTab := s.defaultTab()
	hello := api.NewHelloMessage(
		int(s.cfg.RefreshInterval/time.Millisecond),
		s.monitor.Views(),
		defaultTab,
		features,
		chartsMaxPoints,
	)

	ctx, cancel := context.WithCancel(r.Context())

	writerDone := make(chan struct{})
	go s.wsWriter(ctx, conn, outbound, cancel, logger, writerDone)

	var (
		subCh       <-chan tab.View
		unsubscribe func()
		currentTab  string
	)

	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		outbound.close()
		cancel()
		<-writerDone
	}()

	if !s.enqueueMessage(outbound, hello, logger) {
		return
	}

	messageCh := make(chan []byte, 8)
	readErrCh := make(chan error, 1)
	go s.readMessages(ctx, conn, messageCh, readErrCh)

	switchSubscription := func(target string) error {
		if target == "" {
			return fmt.Errorf("empty tab id")
		}
		if target == currentTab {
			return nil
		}
		ch, cancelSub, err := s.monitor.Subscribe(target)
		if err != nil {
			return err
		}
		if unsubscribe != nil {
			unsubscribe()
		}
		subCh = ch
		unsubscribe = cancelSub
		currentTab = target
		logger.Info("ws subscribed", "tab_id", target)
		return nil
	}

	if defaultTab != "" {
		if err := switchSubscription(defaultTab); err != nil {
			logger.Warn("failed to subscribe default tab", "tab_id", defaultTab, "err", err)
			_ = s.enqueueError(outbound, fmt.Sprintf("failed to subscribe default tab: %v", err), logger)
		}
	} else {
		_ = s.enqueueError(outbound, "no NPUs detected", logger)
	}

	for {
		select {
		case view, ok := <-subCh:
			if !ok {
				subCh = nil
				unsubscribe = nil
				if currentTab != "" {
					_ = s.enqueueError(outbound, fmt.Sprintf("tab %q removed", currentTab), logger)
				}
				currentTab = ""
				continue
			}
			if !s.enqueueMessage(outbound, api.NewTabMessage(view), logger) {
				return
			}
			if s.monitor.ChartsEnabled() {
				if history, ok := s.monitor.Series(view.TabID); ok {
					if !s.enqueueMessage(outbound, api.NewSeriesMessage(view.TabID, history), logger) {
						return
					}
				}
			}
		case data, ok := <-messageCh:
			if !ok {
				messageCh = nil
				continue
			}
			if err := s.handleClientMessage(outbound, data, switchSubscription, logger); err != nil {
				logger.Warn("client message handling error", "err", err)
				return
			}
		case err := <-readErrCh:
			if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Warn("websocket read error", "err", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) defaultTab() string {
	ids := s.monitor.TabIDs()
	if s.cfg.DefaultTab != "" && s.cfg.DefaultTab != "auto" {
		for _, id := range ids {
			if id == s.cfg.DefaultTab {
				return id
			}
		}
		s.logger.Warn("configured default tab not found", "tab_id", s.cfg.DefaultTab)
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func (s *Server) readMessages(ctx context.Context, conn *websocket.Conn, out chan<- []byte, errCh chan<- error) {
	defer close(out)
	for {
		readCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.WS.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, s.cfg.WS.ReadTimeout)
		}
		msgType, data, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			errCh <- err
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleClientMessage(outbound *wsOutbound, data []byte, switchSubscription func(string) error, logger *slog.Logger) error {
	var envelope api.ClientMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.Debug("invalid client message", "err", err)
		return nil
	}

	switch envelope.Type {
	case "subscribe":
		var msg api.SubscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !s.enqueueError(outbound, "invalid subscribe payload", logger) {
				return fmt.Errorf("failed to enqueue subscribe error")
			}
			return nil
		}
		target := msg.TabID
		if target == "" {
			target = s.defaultTab()
		}
		if target == "" {
			if !s.enqueueError(outbound, "no tab_id provided and no default available", logger) {
				return fmt.Errorf("failed to enqueue tab missing error")
			}
			return nil
		}
		if err := switchSubscription(target); err != nil {
			if !s.enqueueError(outbound, err.Error(), logger) {
				return fmt.Errorf("failed to enqueue subscription error")
			}
			return nil
		}
	case "ping":
		if !s.enqueueMessage(outbound, api.PongMessage{Type: "pong"}, logger) {
			return fmt.Errorf("failed to enqueue pong response")
		}
	default:
		logger.Debug("unknown message type", "type", envelope.Type)
	}
	return nil
}

func (s *Server) wsWriter(ctx context.Context, conn *websocket.Conn, outbound *wsOutbound, cancel context.CancelFunc, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-outbound.channel():
			if !ok {
				return
			}
			if err := s.writeRaw(ctx, conn, msg); err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					logger.Warn("websocket write failed", "err", err)
				}
				cancel()
				return
			}
			s.wsSent.Add(1)
		}
	}
}

func (s *Server) writeRaw(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.WS.WriteTimeout > 0 {
		writeCtx, cancel = context.WithTimeout(ctx, s.cfg.WS.WriteTimeout)
	}
	if cancel != nil {
		defer cancel()
	}
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *Server) enqueueMessage(outbound *wsOutbound, payload any, logger *slog.Logger) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal websocket payload", "err", err)
		return false
	}
	if !outbound.enqueue(data) {
		logger.Warn("websocket outbound queue unavailable")
		return false
	}
	return true
}

func (s *Server) enqueueError(outbound *wsOutbound, msg string, logger *slog.Logger) bool {
	return s.enqueueMessage(outbound, api.ErrorMessage{Type: "error", Message: msg}, logger)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	logger := s.loggerFromContext(r.Context())
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) reserveWS() bool {
	if s.maxWSClients <= 0 {
		s.wsActive.Add(1)
		return true
	}

	for {
		current := s.wsActive.Load()
		if current >= s.maxWSClients {
			s.wsRejected.Add(1)
			return false
		}
		if s.wsActive.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (s *Server) releaseWS() {
	s.wsActive.Add(-1)
}

func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func originPatterns(origins []string) []string {
	for _, origin := range origins {
		if origin == "*" {
			return nil
		}
	}
	dst := make([]string, len(origins))
	copy(dst, origins)
	return dst
}

func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func (s *Server) readiness() readyResponse {
	if s.monitor == nil {
		return readyResponse{Status: "degraded", Reason: "monitor_not_configured"}
	}

	resp := readyResponse{Tabs: len(s.monitor.TabIDs())}
	if s.monitor.Ready() {
		resp.Status = "ok"
		return resp
	}

	resp.Status = "initializing"
	resp.Reason = "waiting_for_refresh"
	return resp
}

type readyResponse struct {
	Status string `json:"status"`
	Tabs   int    `json:"tabs"`
	Reason string `json:"reason,omitempty"`
}

type wsOutbound struct {
	ch     chan []byte
	closed atomic.Bool
	drops  *atomic.Uint64
}

func newWSOutbound(size int, dropCounter *atomic.Uint64) *wsOutbound {
	if size <= 0 {
		size = 1
	}
	return &wsOutbound{
		ch:    make(chan []byte, size),
		drops: dropCounter,
	}
}

func (o *wsOutbound) enqueue(msg []byte) bool {
	if o.closed.Load() {
		o.countDrop()
		return false
	}

	select {
	case o.ch <- msg:
		return true
	default:
	}

	droppedOld := false
	select {
	case <-o.ch:
		droppedOld = true
	default:
	}
	if droppedOld {
		o.countDrop()
	}

	if o.closed.Load() {
		o.countDrop()
		return false
	}

	select {
	case o.ch <- msg:
		return true
	default:
		o.countDrop()
		return false
	}
}

func (o *wsOutbound) close() {
	if o.closed.CompareAndSwap(false, true) {
		close(o.ch)
	}
}

func (o *wsOutbound) channel() <-chan []byte {
	return o.ch
}

func (o *wsOutbound) countDrop() {
	if o.drops != nil {
		o.drops.Add(1)
	}
}
