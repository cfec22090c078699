package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/internal/server"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const defaultRemoteURL = "ws://localhost:8080/ws"

var (
	remoteURL     string
	remoteTimeout time.Duration
	remoteJSON    bool
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Read and write cells on a running gridcalc server",
}

var remoteGetCmd = &cobra.Command{
	Use:   "get <address>...",
	Short: "Print cells from the server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemoteGet,
}

var remoteSetCmd = &cobra.Command{
	Use:   "set <address=value>...",
	Short: "Write cells on the server and print what was recalculated",
	Example: `  gridcalc remote set A1=5 "B1==A1*2"
  gridcalc remote set --url ws://grid.internal:8080/ws C3=hello`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemoteSet,
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteURL, "url", defaultRemoteURL, "Server websocket URL (env: GRIDCALC_URL)")
	remoteCmd.PersistentFlags().DurationVar(&remoteTimeout, "timeout", 10*time.Second, "Give up after this long")
	remoteCmd.PersistentFlags().BoolVar(&remoteJSON, "json", false, "Output cells as JSON")
	remoteCmd.AddCommand(remoteGetCmd, remoteSetCmd)
	rootCmd.AddCommand(remoteCmd)
}

// remoteSession is one websocket connection to a gridcalc server
type remoteSession struct {
	conn   *websocket.Conn
	nextID int
}

func dialRemote(ctx context.Context, url string) (*remoteSession, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	return &remoteSession{conn: conn}, nil
}

func (r *remoteSession) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "")
}

// do sends a request and waits for its response. updates pushed by other
// clients' edits are skipped.
func (r *remoteSession) do(ctx context.Context, req server.Request) (server.Response, error) {
	r.nextID++
	req.ID = strconv.Itoa(r.nextID)
	if err := wsjson.Write(ctx, r.conn, req); err != nil {
		return server.Response{}, fmt.Errorf("sending %s: %w", req.Op, err)
	}
	for {
		var msg struct {
			server.Response
			Op string `json:"op"`
		}
		if err := wsjson.Read(ctx, r.conn, &msg); err != nil {
			return server.Response{}, fmt.Errorf("reading response: %w", err)
		}
		if msg.Op == server.OpUpdate || msg.ID != req.ID {
			continue
		}
		if !msg.OK {
			return msg.Response, fmt.Errorf("%s %s: %s (%s)", req.Op, req.Address, msg.Error, msg.Code)
		}
		return msg.Response, nil
	}
}

func withRemote(cmd *cobra.Command, fn func(ctx context.Context, session *remoteSession) ([]spreadsheet.CellView, error)) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	session, err := dialRemote(ctx, flagOrEnv(cmd.Flags(), "url", "GRIDCALC_URL"))
	if err != nil {
		return err
	}
	defer session.Close()

	cells, err := fn(ctx, session)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if remoteJSON {
		if err := jsonPrint(out, cells); err != nil {
			return err
		}
	} else {
		printCells(out, cells)
	}
	if countErrors(cells) > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}

func runRemoteGet(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, session *remoteSession) ([]spreadsheet.CellView, error) {
		var cells []spreadsheet.CellView
		for _, address := range args {
			resp, err := session.do(ctx, server.Request{Op: server.OpGet, Address: address})
			if err != nil {
				return nil, err
			}
			cells = append(cells, resp.Cells...)
		}
		return cells, nil
	})
}

func runRemoteSet(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, session *remoteSession) ([]spreadsheet.CellView, error) {
		var cells []spreadsheet.CellView
		for _, assignment := range args {
			address, value, err := parseAssignment(assignment)
			if err != nil {
				return nil, err
			}
			resp, err := session.do(ctx, server.Request{Op: server.OpSet, Address: address, Value: value})
			if err != nil {
				return nil, err
			}
			cells = append(cells, resp.Cells...)
		}
		return cells, nil
	})
}
