package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zzzchinguun/holdem-server/internal/auth"
	"github.com/zzzchinguun/holdem-server/internal/db"
	"github.com/zzzchinguun/holdem-server/internal/engine"
	"github.com/zzzchinguun/holdem-server/internal/history"
	"github.com/zzzchinguun/holdem-server/internal/models"
	"github.com/zzzchinguun/holdem-server/internal/redisstore"
)

// Config holds the gateway settings.
type Config struct {
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
	DefaultTable   models.TableConfig
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the websocket gateway: it authenticates connections, routes
// intents into the table engine and fans engine snapshots back out with
// per-recipient hole card masking.
type Server struct {
	cfg     Config
	logger  *log.Logger
	auth    *auth.Service
	manager *engine.TableManager
	actions *ActionTracker

	database *db.DB
	history  *history.Tracker
	cache    *redisstore.Client
	locks    *redisstore.LockManager

	mu      sync.RWMutex
	clients map[string]*Client

	lockMu    sync.Mutex
	heldLocks map[string]*redisstore.Lock
	lockStop  chan struct{}
	lockOnce  sync.Once
}

func New(cfg Config, logger *log.Logger, clock quartz.Clock) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.WithPrefix("gateway"),
		auth:    auth.NewService(cfg.JWTSecret),
		actions: NewActionTracker(),
		clients: make(map[string]*Client),
	}
	s.manager = engine.NewTableManager(clock, logger, s.handleEngineEvent)
	return s
}

// AttachPersistence enables table/seat records and hand history.
func (s *Server) AttachPersistence(database *db.DB, tracker *history.Tracker) {
	s.database = database
	s.history = tracker
	s.manager.SetRecorder(tracker)
}

// AttachCache enables the Redis snapshot cache and table ownership
// locking, so multiple gateway instances can share one Redis without
// driving the same table twice.
func (s *Server) AttachCache(cache *redisstore.Client) {
	s.cache = cache
	s.locks = redisstore.NewLockManager(cache)
	s.heldLocks = make(map[string]*redisstore.Lock)
	s.lockStop = make(chan struct{})
	go s.extendLocksLoop()
}

// Manager exposes the table manager for startup recovery.
func (s *Server) Manager() *engine.TableManager {
	return s.manager
}

// Router builds the HTTP surface: the websocket endpoint, liveness and
// the read-only table/history API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)

	api := router.Group("/api")
	api.GET("/tables/:id/state", s.handleTableState)
	api.GET("/tables/:id/hands", s.handleTableHands)
	api.GET("/hands/:id/events", s.handleHandEvents)

	return router
}

// Run serves until ctx is cancelled, then drains connections and tables.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.manager.Shutdown()
	s.actions.Stop()
	if s.history != nil {
		s.history.Close()
	}
	if s.lockStop != nil {
		s.lockOnce.Do(func() { close(s.lockStop) })
	}
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.cache != nil {
		if err := s.cache.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

// handleTableState serves a spectator view of a table. Tables hosted by
// another gateway instance are answered from the Redis snapshot cache.
// The empty viewer id masks every hole card outside showdown.
func (s *Server) handleTableState(c *gin.Context) {
	tableID := c.Param("id")

	if table, err := s.manager.GetTable(tableID); err == nil {
		c.JSON(http.StatusOK, engine.MaskForViewer(table.Snapshot(), ""))
		return
	}

	if s.cache != nil {
		state, err := s.cache.LatestSnapshot(c.Request.Context(), tableID)
		if err == nil && state != nil {
			c.JSON(http.StatusOK, engine.MaskForViewer(state, ""))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
}

func (s *Server) handleTableHands(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	hands, err := s.history.HandsForTable(c.Param("id"), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load hands"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hands": hands})
}

func (s *Server) handleHandEvents(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	events, err := s.history.EventsForHand(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// handleWebSocket authenticates the session token and starts the pumps.
// A reconnecting user replaces their previous registration.
func (s *Server) handleWebSocket(c *gin.Context) {
	token := c.Query("token")
	userID, err := s.auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := newClient(userID, conn)

	s.mu.Lock()
	if previous, ok := s.clients[userID]; ok {
		previous.close()
	}
	s.clients[userID] = client
	s.mu.Unlock()

	s.logger.Info("client connected", "user", userID)
	go client.writePump()
	go client.readPump(s)
}

// handleDisconnect runs when a client's read loop ends. The seat stays
// occupied: the engine only flags the status and the action deadline
// still decides their hand.
func (s *Server) handleDisconnect(c *Client) {
	s.mu.Lock()
	if current, ok := s.clients[c.UserID]; ok && current == c {
		delete(s.clients, c.UserID)
	}
	tableID := c.TableID
	s.mu.Unlock()

	// Release the write pump; close is idempotent so a connection already
	// superseded by a reconnect is unaffected.
	c.close()

	s.logger.Info("client disconnected", "user", c.UserID)
	if tableID == "" {
		return
	}
	if table, err := s.manager.GetTable(tableID); err == nil {
		table.MarkDisconnected(c.UserID)
	}
}

func (s *Server) handleIntent(c *Client, intent models.Intent) {
	switch intent.Type {
	case "join_table":
		s.joinTable(c, intent)
	case "player_action":
		s.playerAction(c, intent)
	case "leave_table":
		s.leaveTable(c)
	case "sit_out":
		s.setSittingOut(c, true)
	case "sit_in":
		s.setSittingOut(c, false)
	default:
		c.sendError("unknown message type: " + intent.Type)
	}
}

func (s *Server) joinTable(c *Client, intent models.Intent) {
	if intent.TableID == "" {
		c.sendError("tableId is required")
		return
	}

	table, err := s.manager.GetTable(intent.TableID)
	if errors.Is(err, engine.ErrTableNotFound) {
		if err := s.claimTable(intent.TableID); err != nil {
			c.sendError("table is owned by another server")
			return
		}
		table, err = s.manager.CreateTable(intent.TableID, s.cfg.DefaultTable)
		if err == nil {
			s.persistTable(intent.TableID)
		} else if errors.Is(err, engine.ErrTableExists) {
			table, err = s.manager.GetTable(intent.TableID)
		}
	}
	if err != nil {
		c.sendError("failed to open table")
		return
	}

	name := intent.Name
	if name == "" {
		name = c.UserID
	}

	// Register for broadcasts before seating so the join snapshot reaches
	// this client too.
	s.setClientTable(c, intent.TableID)
	if err := table.AddPlayer(c.UserID, name, intent.Seat, intent.BuyIn); err != nil {
		s.setClientTable(c, "")
		c.sendError(err.Error())
		return
	}
	table.MarkReconnected(c.UserID)
	s.persistSeat(c.UserID, intent.TableID, table)
}

func (s *Server) playerAction(c *Client, intent models.Intent) {
	if c.TableID == "" {
		c.sendError("join a table first")
		return
	}
	table, err := s.manager.GetTable(c.TableID)
	if err != nil {
		c.sendError("table not found")
		return
	}

	// A retransmit of an already applied request is dropped, answered only
	// with the current state.
	if s.actions.IsDuplicate(intent.RequestID) {
		s.logger.Info("duplicate action dropped", "user", c.UserID, "requestId", intent.RequestID)
		s.sendSnapshot(c, table)
		return
	}

	err = table.HandleAction(c.UserID, models.PlayerAction(intent.Action), intent.Amount, intent.Phase)
	if err != nil {
		// The rejection stays local to the offender.
		c.sendError(err.Error())
		return
	}
	s.actions.MarkProcessed(intent.RequestID, c.UserID, c.TableID)
}

func (s *Server) leaveTable(c *Client) {
	if c.TableID == "" {
		return
	}
	table, err := s.manager.GetTable(c.TableID)
	if err == nil {
		if err := table.RemovePlayer(c.UserID); err != nil {
			c.sendError(err.Error())
			return
		}
	}
	s.persistSeatLeft(c.UserID, c.TableID)
	s.setClientTable(c, "")
}

func (s *Server) setSittingOut(c *Client, out bool) {
	if c.TableID == "" {
		c.sendError("join a table first")
		return
	}
	table, err := s.manager.GetTable(c.TableID)
	if err != nil {
		c.sendError("table not found")
		return
	}
	if out {
		err = table.SitOut(c.UserID)
	} else {
		err = table.SitIn(c.UserID)
	}
	if err != nil {
		c.sendError(err.Error())
	}
}

func (s *Server) setClientTable(c *Client, tableID string) {
	s.mu.Lock()
	c.TableID = tableID
	s.mu.Unlock()
}

func (s *Server) sendSnapshot(c *Client, table *engine.Table) {
	state := engine.MaskForViewer(table.Snapshot(), c.UserID)
	c.sendJSON(models.EventGameState, state)
}

// handleEngineEvent fans an engine event out to every client at the
// table. Snapshots are masked per recipient; the unmasked copy goes to
// the Redis cache. Called with the game mutex held, so everything here is
// non-blocking.
func (s *Server) handleEngineEvent(event models.Event) {
	if state, ok := event.Data.(*models.GameState); ok && event.Event == models.EventGameState {
		if s.cache != nil {
			snapshot := *state
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				s.cache.CacheSnapshot(ctx, &snapshot)
			}()
		}

		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, client := range s.clients {
			if client.TableID != event.TableID {
				continue
			}
			masked := engine.MaskForViewer(state, client.UserID)
			data, err := json.Marshal(models.Event{
				Event:   event.Event,
				TableID: event.TableID,
				Data:    masked,
			})
			if err != nil {
				continue
			}
			if !client.enqueue(data) {
				s.logger.Warn("dropping snapshot for slow client", "user", client.UserID)
			}
		}
		return
	}

	if event.Event == models.EventHandComplete {
		// Stack sizes changed; refresh the seat records so a restart
		// reseats everyone with their post-hand chips. The engine mutex is
		// held here, so the snapshot read happens on another goroutine.
		go s.syncSeats(event.TableID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		if client.TableID == event.TableID {
			client.enqueue(data)
		}
	}
}

func (s *Server) syncSeats(tableID string) {
	if s.database == nil {
		return
	}
	table, err := s.manager.GetTable(tableID)
	if err != nil {
		return
	}
	for _, p := range table.Snapshot().Players {
		err := s.database.Model(&db.SeatRecord{}).
			Where("table_id = ? AND user_id = ? AND left_at IS NULL", tableID, p.ID).
			Update("chips", p.Chips).Error
		if err != nil {
			s.logger.Error("failed to sync seat chips", "table", tableID, "user", p.ID, "err", err)
		}
	}
}

// claimTable takes the distributed ownership lock before a table is
// hosted here. Without Redis every table is local and claiming is a
// no-op.
func (s *Server) claimTable(tableID string) error {
	if s.locks == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	lock, err := s.locks.AcquireTableLock(ctx, tableID)
	if err != nil {
		return err
	}
	s.lockMu.Lock()
	s.heldLocks[tableID] = lock
	s.lockMu.Unlock()
	return nil
}

// extendLocksLoop refreshes held table locks well inside their TTL. A
// lock that turns out to belong elsewhere is dropped, not fought over.
func (s *Server) extendLocksLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.lockMu.Lock()
			held := make(map[string]*redisstore.Lock, len(s.heldLocks))
			for id, lock := range s.heldLocks {
				held[id] = lock
			}
			s.lockMu.Unlock()

			for id, lock := range held {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := lock.Extend(ctx, 30*time.Second)
				cancel()
				if errors.Is(err, redisstore.ErrLockNotHeld) {
					s.logger.Warn("lost table lock", "table", id)
					s.lockMu.Lock()
					delete(s.heldLocks, id)
					s.lockMu.Unlock()
				}
			}
		case <-s.lockStop:
			s.releaseAllLocks()
			return
		}
	}
}

func (s *Server) releaseAllLocks() {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	for id, lock := range s.heldLocks {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		s.cache.DropSnapshot(ctx, id)
		if err := lock.Release(ctx); err != nil {
			s.logger.Error("failed to release table lock", "table", id, "err", err)
		}
		cancel()
		delete(s.heldLocks, id)
	}
}

func (s *Server) persistTable(tableID string) {
	if s.database == nil {
		return
	}
	record := db.TableRecord{
		ID:            tableID,
		Name:          tableID,
		Status:        "waiting",
		SmallBlind:    s.cfg.DefaultTable.SmallBlind,
		BigBlind:      s.cfg.DefaultTable.BigBlind,
		MaxPlayers:    s.cfg.DefaultTable.MaxPlayers,
		MinBuyIn:      s.cfg.DefaultTable.MinBuyIn,
		MaxBuyIn:      s.cfg.DefaultTable.MaxBuyIn,
		ActionTimeout: s.cfg.DefaultTable.ActionTimeout,
	}
	if err := s.database.Create(&record).Error; err != nil {
		s.logger.Error("failed to persist table", "table", tableID, "err", err)
	}
}

func (s *Server) persistSeat(userID, tableID string, table *engine.Table) {
	if s.database == nil {
		return
	}
	state := table.Snapshot()
	for _, p := range state.Players {
		if p.ID != userID {
			continue
		}
		record := db.SeatRecord{
			TableID:    tableID,
			UserID:     userID,
			SeatNumber: p.Position,
			Chips:      p.Chips,
		}
		err := s.database.
			Where("table_id = ? AND user_id = ? AND left_at IS NULL", tableID, userID).
			FirstOrCreate(&record).Error
		if err != nil {
			s.logger.Error("failed to persist seat", "table", tableID, "user", userID, "err", err)
		}
		return
	}
}

func (s *Server) persistSeatLeft(userID, tableID string) {
	if s.database == nil {
		return
	}
	now := time.Now().UTC()
	err := s.database.Model(&db.SeatRecord{}).
		Where("table_id = ? AND user_id = ? AND left_at IS NULL", tableID, userID).
		Update("left_at", &now).Error
	if err != nil {
		s.logger.Error("failed to close seat record", "table", tableID, "user", userID, "err", err)
	}
}
