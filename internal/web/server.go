package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"webp-optimizer-go/internal/config"
	"webp-optimizer-go/internal/converter"
	"webp-optimizer-go/internal/inspector"
	"webp-optimizer-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server exposes the batch converter over HTTP: a small JSON API to start
// and stop a run, plus a WebSocket stream of per-file results.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	cancelRun      context.CancelFunc
	currentStats   *statistics.Statistics
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ConvertRequest struct {
	Directory string `json:"directory"`
	DryRun    bool   `json:"dry_run"`
}

type ScanRequest struct {
	Directory string `json:"directory"`
}

type ScanEntry struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
	WouldResize bool   `json:"would_resize"`
	TakenAt     string `json:"taken_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

type FileResult struct {
	Name            string  `json:"name"`
	OutputPath      string  `json:"output_path,omitempty"`
	OriginalSize    int64   `json:"original_size"`
	ConvertedSize   int64   `json:"converted_size"`
	PercentageSaved float64 `json:"percentage_saved"`
	Resized         bool    `json:"resized"`
	Success         bool    `json:"success"`
	Message         string  `json:"message,omitempty"`
	Line            string  `json:"line"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/convert", s.handleConvert).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData(stats),
		},
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Directory == "" {
		req.Directory = s.cfg.SourceDirectory
	}
	if req.Directory == "" {
		s.writeError(w, "Directory is required", http.StatusBadRequest)
		return
	}

	candidates, err := converter.ListCandidates(req.Directory, s.cfg.SupportedExtensions)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Scan failed: %v", err), http.StatusBadRequest)
		return
	}

	insp := inspector.NewInspector(s.log)
	entries := make([]ScanEntry, 0, len(candidates))
	for _, name := range candidates {
		entry := ScanEntry{Name: name}
		info, err := insp.Inspect(filepath.Join(req.Directory, name))
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			continue
		}
		entry.Width = info.Width
		entry.Height = info.Height
		entry.Size = info.Size
		entry.WouldResize = info.Width > s.cfg.Conversion.MaxWidth
		if info.TakenAt != nil {
			entry.TakenAt = info.TakenAt.Format("2006-01-02 15:04:05")
		}
		entries = append(entries, entry)
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"directory":  req.Directory,
			"candidates": entries,
		},
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Directory == "" {
		req.Directory = s.cfg.SourceDirectory
	}
	if req.Directory == "" {
		s.writeError(w, "Directory is required", http.StatusBadRequest)
		return
	}

	// Check if already running
	s.operationMutex.RLock()
	if s.isRunning {
		s.operationMutex.RUnlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.operationMutex.RUnlock()

	// Check if directory exists
	if _, err := os.Stat(req.Directory); os.IsNotExist(err) {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	go s.runConvertAsync(req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Conversion started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.operationMutex.Unlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Stop requested",
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statsData(stats),
	})
}

func statsData(stats *statistics.Statistics) interface{} {
	if stats == nil {
		return nil
	}
	return map[string]interface{}{
		"summary": stats.GetSummary(),
		"files": map[string]interface{}{
			"found":     atomic.LoadInt64(&stats.FilesFound),
			"converted": atomic.LoadInt64(&stats.FilesConverted),
			"resized":   atomic.LoadInt64(&stats.FilesResized),
			"failed":    atomic.LoadInt64(&stats.FilesFailed),
		},
		"bytes": map[string]interface{}{
			"original":  atomic.LoadInt64(&stats.BytesOriginal),
			"converted": atomic.LoadInt64(&stats.BytesConverted),
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (s *Server) runConvertAsync(req ConvertRequest) {
	ctx, cancel := context.WithCancel(context.Background())

	stats := statistics.NewStatistics()
	s.operationMutex.Lock()
	s.isRunning = true
	s.cancelRun = cancel
	s.currentStats = stats
	s.operationMutex.Unlock()

	s.broadcastWSMessage("convert_started", map[string]interface{}{
		"directory": req.Directory,
		"dry_run":   req.DryRun,
	})

	params := converter.ConversionParams{
		SourceDir:  req.Directory,
		Extensions: s.cfg.SupportedExtensions,
		MaxWidth:   s.cfg.Conversion.MaxWidth,
		Quality:    s.cfg.Conversion.Quality,
		Method:     s.cfg.Conversion.Method,
		AutoOrient: s.cfg.Conversion.AutoOrient,
		DryRun:     req.DryRun || s.cfg.Security.DryRun,
	}

	conv := converter.NewDefaultConverterWithHook(func(res converter.ConversionResult) {
		s.recordResult(stats, res)
		s.broadcastWSMessage("file_result", toFileResult(res))
	})

	_, err := conv.Convert(ctx, params)
	stats.Finalize()

	s.operationMutex.Lock()
	s.isRunning = false
	s.cancelRun = nil
	s.operationMutex.Unlock()
	cancel()

	switch {
	case errors.Is(err, context.Canceled):
		s.broadcastWSMessage("convert_stopped", map[string]interface{}{
			"message": "Operation stopped by user",
		})
	case err != nil:
		s.broadcastWSMessage("convert_error", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.broadcastWSMessage("convert_completed", map[string]interface{}{
			"statistics": stats.GetSummary(),
		})
	}
}

func (s *Server) recordResult(stats *statistics.Statistics, res converter.ConversionResult) {
	switch res.Action {
	case "converted":
		stats.IncrementFilesConverted()
		stats.AddBytes(res.OriginalSize, res.ConvertedSize)
		if res.Resized {
			stats.IncrementFilesResized()
		}
	case "planned":
		stats.IncrementFilesPlanned()
	default:
		stats.IncrementFilesFailed()
		stats.AddError(res.InputPath, string(res.Kind), res.Message)
	}
}

func toFileResult(res converter.ConversionResult) FileResult {
	return FileResult{
		Name:            res.InputPath,
		OutputPath:      res.OutputPath,
		OriginalSize:    res.OriginalSize,
		ConvertedSize:   res.ConvertedSize,
		PercentageSaved: res.PercentageSaved,
		Resized:         res.Resized,
		Success:         res.Success,
		Message:         res.Message,
		Line:            res.ReportLine(),
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
