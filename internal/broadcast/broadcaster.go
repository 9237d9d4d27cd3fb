// Package broadcast fans snapshot updates out to subscribed dashboard
// clients. Delivery is best-effort: publishing never blocks ingestion,
// and a client that cannot keep up is dropped, not waited on.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Yemba/vistatv-live-dashboard/internal/metrics"
	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

type scopeClients map[*websocket.Conn]*clientWriter

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	scope        string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	scope      string
	connection *websocket.Conn
}

type publishCmd struct {
	baseBroadcasterCmd
	scope   string
	payload []byte
}

type clientCountCmd struct {
	baseBroadcasterCmd
	scope        string
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the subscriber set. All state lives inside a single
// actor goroutine fed by a command channel, so no locking is needed and
// a stuck client can never corrupt the registry.
type Broadcaster struct {
	cmdCh              chan broadcasterCmd
	clock              clockwork.Clock
	subscribers        map[string]scopeClients
	done               chan struct{}
	stopTimeout        time.Duration
	maxClientsPerScope int
}

// NewBroadcaster starts the broadcast actor. maxClientsPerScope bounds
// subscribers per scope to prevent resource exhaustion.
func NewBroadcaster(clock clockwork.Clock, maxClientsPerScope int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:              make(chan broadcasterCmd, 256),
		clock:              clock,
		subscribers:        make(map[string]scopeClients),
		done:               make(chan struct{}),
		stopTimeout:        stopTimeout,
		maxClientsPerScope: maxClientsPerScope,
	}
	go b.run()
	return b
}

// Register adds a client to a scope's subscriber set. Returns an error
// only when the scope is at its client limit.
func (b *Broadcaster) Register(scope string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{scope: scope, connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client from a scope.
func (b *Broadcaster) Unregister(scope string, conn *websocket.Conn) {
	b.cmdCh <- unregisterCmd{scope: scope, connection: conn}
}

// Publish pushes a fresh snapshot to every subscriber of the scope.
// Fire-and-forget: if the command queue is saturated the update is
// dropped and counted, and the caller proceeds regardless.
func (b *Broadcaster) Publish(scope string, rec stats.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Failed to marshal snapshot for broadcast", "scope", scope, "error", err)
		return
	}

	select {
	case b.cmdCh <- publishCmd{scope: scope, payload: payload}:
	default:
		metrics.BroadcasterDroppedPublishesTotal.Inc()
		slog.Warn("Dropping snapshot update on saturated broadcaster queue", "scope", scope)
	}
}

// ClientCount returns the number of connected clients for a scope.
// Returns -1 if the command times out.
func (b *Broadcaster) ClientCount(scope string) int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{scope: scope, replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the broadcaster, closing all client connections.
// Blocks until the actor goroutine has exited or the timeout is reached.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded, forcing exit", "timeout", b.stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
		close(b.done)
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients("broadcaster panic")
		}
	}()
	defer close(b.done)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c)
		case publishCmd:
			b.handlePublish(c)
		case clientCountCmd:
			c.replyChannel <- len(b.subscribers[c.scope])
		case stopCmd:
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	clients, exists := b.subscribers[c.scope]
	if !exists {
		clients = make(scopeClients)
		b.subscribers[c.scope] = clients
	}

	if len(clients) >= b.maxClientsPerScope {
		slog.Warn("Rejecting client: max clients reached", "scope", c.scope, "max_clients", b.maxClientsPerScope)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients per scope (%d) reached", b.maxClientsPerScope)
		return
	}

	clients[c.connection] = newClientWriter(c.connection, b.clock)

	metrics.BroadcasterActiveScopes.Set(float64(len(b.subscribers)))
	metrics.BroadcasterConnectedClients.Inc()

	slog.Debug("Client registered", "scope", c.scope, "total_clients", len(clients))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	clients, exists := b.subscribers[c.scope]
	if !exists {
		return
	}

	cw, exists := clients[c.connection]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, c.connection)
	metrics.BroadcasterConnectedClients.Dec()

	if len(clients) == 0 {
		delete(b.subscribers, c.scope)
		metrics.BroadcasterActiveScopes.Set(float64(len(b.subscribers)))
		slog.Debug("Last client disconnected", "scope", c.scope)
	}
}

func (b *Broadcaster) handlePublish(c publishCmd) {
	clients := b.subscribers[c.scope]
	if len(clients) == 0 {
		return
	}

	var slow []*websocket.Conn
	for conn, writer := range clients {
		select {
		case writer.sendChannel <- c.payload:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "scope", c.scope)
		metrics.BroadcasterSlowClientsEvicted.Inc()
		b.handleUnregister(unregisterCmd{scope: c.scope, connection: conn})
	}
}

func (b *Broadcaster) handleStop() {
	totalClients := 0
	for _, clients := range b.subscribers {
		totalClients += len(clients)
	}

	slog.Info("Broadcaster shutting down", "scopes", len(b.subscribers), "total_clients", totalClients)
	b.closeAllClients("Server shutting down")
	slog.Info("Broadcaster shutdown complete", "disconnected_clients", totalClients)
}

// closeAllClients closes every connection with the given reason. Used
// during panic recovery and graceful shutdown.
func (b *Broadcaster) closeAllClients(reason string) {
	for scope, clients := range b.subscribers {
		for _, cw := range clients {
			cw.stopGraceful(reason)
		}
		delete(b.subscribers, scope)
	}
	metrics.BroadcasterActiveScopes.Set(0)
	metrics.BroadcasterConnectedClients.Set(0)
}
