package server

import (
	"errors"
	"fmt"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// Ops understood over the websocket
const (
	OpGet              = "get"
	OpSet              = "set"
	OpRemove           = "remove"
	OpFormat           = "format"
	OpMergeFormat      = "mergeFormat"
	OpSnapshot         = "snapshot"
	OpLoad             = "load"
	OpClear            = "clear"
	OpInsertRow        = "insertRow"
	OpDeleteRow        = "deleteRow"
	OpInsertColumn     = "insertColumn"
	OpDeleteColumn     = "deleteColumn"
	OpFindReplace      = "findReplace"
	OpRemoveDuplicates = "removeDuplicates"

	// OpUpdate tags messages pushed to the other clients after a change
	OpUpdate = "update"
)

// Request is one client message
type Request struct {
	ID       string                   `json:"id,omitempty"`
	Op       string                   `json:"op"`
	Address  string                   `json:"address,omitempty"`
	Value    any                      `json:"value,omitempty"`
	Format   *spreadsheet.CellFormat  `json:"format,omitempty"`
	Patch    *spreadsheet.FormatPatch `json:"patch,omitempty"`
	Index    int                      `json:"index,omitempty"`
	From     string                   `json:"from,omitempty"`
	To       string                   `json:"to,omitempty"`
	Find     string                   `json:"find,omitempty"`
	Replace  string                   `json:"replace,omitempty"`
	Snapshot *spreadsheet.Snapshot    `json:"snapshot,omitempty"`
}

// Response answers exactly one Request. when Reset is set, Cells holds
// every occupied cell and replaces whatever the client had.
type Response struct {
	ID       string                 `json:"id,omitempty"`
	OK       bool                   `json:"ok"`
	Error    string                 `json:"error,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Cells    []spreadsheet.CellView `json:"cells,omitempty"`
	Reset    bool                   `json:"reset,omitempty"`
	Count    int                    `json:"count,omitempty"`
	Snapshot *spreadsheet.Snapshot  `json:"snapshot,omitempty"`
}

// Update is broadcast to every client but the one whose request caused it
type Update struct {
	Op    string                 `json:"op"`
	Cells []spreadsheet.CellView `json:"cells"`
	Reset bool                   `json:"reset,omitempty"`
}

func failure(id string, err error) Response {
	code := spreadsheet.Unknown
	var appErr *spreadsheet.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	return Response{ID: id, Error: err.Error(), Code: code.String()}
}

func errUnknownOp(op string) error {
	return spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("Unknown op %q", op))
}
