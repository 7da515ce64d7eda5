package commands

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "github.com/mixbytes/randpa/node"
)

// debugPollInterval is how often the /status socket pushes a fresh
// engine.Snapshot to connected operators.
const debugPollInterval = 500 * time.Millisecond

var debugUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewDebugCmd wires nodeProvider into a cobra command that starts the node
// exactly like NewStartCmd, but additionally serves a gorilla/websocket
// endpoint at /status streaming engine.Snapshot as JSON -- the nearest
// thing to the teacher's telemetry_plugin this gadget owns, without
// standing up a real Prometheus exporter (spec.md is silent on
// introspection; this is ambient operator tooling).
func NewDebugCmd(nodeProvider nm.Provider) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Run the randpa node with a local websocket status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, randpaConfig, logger)
			if err != nil {
				return err
			}
			if err := n.Start(); err != nil {
				return err
			}
			logger.Info("Started node", "nodeInfo", n.NodeInfo())

			mux := http.NewServeMux()
			mux.HandleFunc("/status", debugStatusHandler(n))
			srv := &http.Server{Addr: listenAddr, Handler: mux}

			go func() {
				logger.Info("debug status endpoint listening", "addr", listenAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("debug status endpoint stopped", "err", err)
				}
			}()

			tmos.TrapSignal(logger, func() {
				srv.Close()
				if n.IsRunning() {
					n.Stop()
				}
			})

			select {}
		},
	}

	cmd.Flags().StringVar(&listenAddr, "debug_listen_addr", "127.0.0.1:26670", "address the websocket status endpoint listens on")
	return cmd
}

func debugStatusHandler(n *nm.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := debugUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("debug status upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(debugPollInterval)
		defer ticker.Stop()

		for range ticker.C {
			snap := n.Engine().Snapshot()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(snap.JSONString())); err != nil {
				return
			}
		}
	}
}
