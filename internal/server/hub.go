package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// envelope carries a request to the hub. websocket requests are answered
// on the client's send channel, others on reply.
type envelope struct {
	client *Client
	req    Request
	err    error // set when the message could not be decoded
	reply  chan<- Response
}

// Hub is the only owner of the spreadsheet. every read and write runs on
// its goroutine, one request at a time.
type Hub struct {
	sheet  *spreadsheet.Spreadsheet
	logger *slog.Logger

	clients map[*Client]bool

	requests   chan envelope
	register   chan *Client
	unregister chan *Client

	// done is closed when Run returns
	done chan struct{}
}

func newHub(sheet *spreadsheet.Spreadsheet, logger *slog.Logger) *Hub {
	return &Hub{
		sheet:      sheet,
		logger:     logger,
		clients:    make(map[*Client]bool),
		requests:   make(chan envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves requests until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.logger.Debug("client registered", "client", client.id)
			h.clients[client] = true
		case client := <-h.unregister:
			h.logger.Debug("client unregistered", "client", client.id)
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case env := <-h.requests:
			h.handle(env)
		}
	}
}

// Do runs one request on the hub and waits for its response
func (h *Hub) Do(ctx context.Context, req Request) (Response, error) {
	reply := make(chan Response, 1)
	select {
	case h.requests <- envelope{req: req, reply: reply}:
	case <-h.done:
		return Response{}, errors.New("hub stopped")
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (h *Hub) handle(env envelope) {
	var resp Response
	var update *Update
	if env.err != nil {
		resp = failure("", spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "Malformed request: "+env.err.Error()))
	} else {
		resp, update = h.apply(env.req)
		resp.ID = env.req.ID
	}

	if !resp.OK {
		h.logger.Debug("request failed", "op", env.req.Op, "error", resp.Error)
	}

	if env.reply != nil {
		env.reply <- resp
	} else if env.client != nil {
		h.send(env.client, resp)
	}

	if update != nil {
		for client := range h.clients {
			if client != env.client {
				h.send(client, update)
			}
		}
	}
}

// send queues a message for one client. a client that cannot keep up is
// dropped.
func (h *Hub) send(client *Client, v any) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	message, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding message", "error", err)
		return
	}
	select {
	case client.send <- message:
	default:
		h.logger.Warn("dropping slow client", "client", client.id)
		close(client.send)
		delete(h.clients, client)
	}
}

// apply runs one request against the spreadsheet. the update, when not
// nil, is what the other clients need to see.
func (h *Hub) apply(req Request) (Response, *Update) {
	s := h.sheet
	switch req.Op {
	case OpGet:
		view, _, err := s.GetCell(req.Address)
		if err != nil {
			return failure(req.ID, err), nil
		}
		return Response{OK: true, Cells: []spreadsheet.CellView{view}}, nil

	case OpSet:
		result, err := s.Write(req.Address, req.Value)
		if err != nil {
			return failure(req.ID, err), nil
		}
		return h.changed(append([]string{req.Address}, result.Recomputed...))

	case OpRemove:
		// clearing the format first lets the write drop the cell entirely
		if err := s.SetFormat(req.Address, spreadsheet.CellFormat{}); err != nil {
			return failure(req.ID, err), nil
		}
		result, err := s.Write(req.Address, nil)
		if err != nil {
			return failure(req.ID, err), nil
		}
		return h.changed(append([]string{req.Address}, result.Recomputed...))

	case OpFormat:
		var format spreadsheet.CellFormat
		if req.Format != nil {
			format = *req.Format
		}
		if err := s.SetFormat(req.Address, format); err != nil {
			return failure(req.ID, err), nil
		}
		return h.changed([]string{req.Address})

	case OpMergeFormat:
		var patch spreadsheet.FormatPatch
		if req.Patch != nil {
			patch = *req.Patch
		}
		if _, err := s.MergeFormat(req.Address, patch); err != nil {
			return failure(req.ID, err), nil
		}
		return h.changed([]string{req.Address})

	case OpSnapshot:
		return Response{OK: true, Snapshot: s.Snapshot()}, nil

	case OpLoad:
		if err := s.Load(req.Snapshot); err != nil {
			return failure(req.ID, err), nil
		}
		return h.reset(0)

	case OpClear:
		s.Clear()
		return h.reset(0)

	case OpInsertRow, OpDeleteRow, OpInsertColumn, OpDeleteColumn:
		var err error
		switch req.Op {
		case OpInsertRow:
			err = s.InsertRow(req.Index)
		case OpDeleteRow:
			err = s.DeleteRow(req.Index)
		case OpInsertColumn:
			err = s.InsertColumn(req.Index)
		case OpDeleteColumn:
			err = s.DeleteColumn(req.Index)
		}
		if err != nil {
			return failure(req.ID, err), nil
		}
		return h.reset(0)

	case OpFindReplace:
		count, err := s.FindAndReplace(req.From, req.To, req.Find, req.Replace)
		if err != nil {
			return failure(req.ID, err), nil
		}
		return h.reset(count)

	case OpRemoveDuplicates:
		count, err := s.RemoveDuplicateRows(req.From, req.To)
		if err != nil {
			return failure(req.ID, err), nil
		}
		return h.reset(count)

	default:
		return failure(req.ID, errUnknownOp(req.Op)), nil
	}
}

// changed reports a set of cells, absent ones included. the written cell
// shows up again among the recomputed ones when it holds a formula.
func (h *Hub) changed(addresses []string) (Response, *Update) {
	seen := make(map[string]struct{}, len(addresses))
	unique := addresses[:0]
	for _, address := range addresses {
		if _, dup := seen[address]; !dup {
			seen[address] = struct{}{}
			unique = append(unique, address)
		}
	}
	cells := h.sheet.Views(unique...)
	return Response{OK: true, Cells: cells}, &Update{Op: OpUpdate, Cells: cells}
}

// reset reports the whole grid after a bulk change
func (h *Hub) reset(count int) (Response, *Update) {
	cells := h.sheet.Cells()
	return Response{OK: true, Cells: cells, Reset: true, Count: count},
		&Update{Op: OpUpdate, Cells: cells, Reset: true}
}
