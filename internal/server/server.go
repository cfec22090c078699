package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/NYTimes/gziphandler"

	"github.com/vogtb/go-spreadsheet/internal/config"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const shutdownTimeout = 5 * time.Second

// Server exposes one spreadsheet to websocket sessions
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	sheet  *spreadsheet.Spreadsheet
	hub    *Hub
}

// New builds a server. when a snapshot path is configured and the file
// exists, the grid starts from it.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	sheet := spreadsheet.NewSpreadsheet(cfg.SpreadsheetOptions()...)

	if path := cfg.Server.SnapshotPath; path != "" {
		snap, err := ReadSnapshot(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("no snapshot yet", "path", path)
		case err != nil:
			return nil, err
		default:
			if err := sheet.Load(snap); err != nil {
				return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
			}
			logger.Info("snapshot loaded", "path", path, "cells", len(snap.Cells))
		}
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		sheet:  sheet,
		hub:    newHub(sheet, logger),
	}, nil
}

// Handler routes /ws to the websocket session and /grid to the snapshot
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, s.cfg.Server.MaxMessageBytes, s.logger, w, r)
	})
	mux.Handle("/grid", gziphandler.GzipHandler(http.HandlerFunc(s.serveGrid)))
	return mux
}

func (s *Server) serveGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.hub.Do(r.Context(), Request{Op: OpSnapshot})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp.Snapshot); err != nil {
		s.logger.Warn("writing snapshot", "error", err)
	}
}

// RunHub runs only the hub, for callers that serve Handler themselves
func (s *Server) RunHub(ctx context.Context) {
	s.hub.Run(ctx)
}

// Run serves until ctx is cancelled, then stops the hub and writes the
// snapshot when a path is configured
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
		cancel()
	}

	// the hub owns the sheet until it has stopped
	stopHub()
	<-s.hub.done

	if path := s.cfg.Server.SnapshotPath; path != "" {
		if err := WriteSnapshot(path, s.sheet.Snapshot()); err != nil {
			return errors.Join(serveErr, err)
		}
		s.logger.Info("snapshot saved", "path", path)
	}
	return serveErr
}

// ReadSnapshot reads a JSON snapshot file
func ReadSnapshot(path string) (*spreadsheet.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap spreadsheet.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// WriteSnapshot writes a snapshot atomically using a temp file + rename
func WriteSnapshot(path string, snap *spreadsheet.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
