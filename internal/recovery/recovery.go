package recovery

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zzzchinguun/holdem-server/internal/db"
	"github.com/zzzchinguun/holdem-server/internal/engine"
	"github.com/zzzchinguun/holdem-server/internal/models"
)

// Recoverer rebuilds live tables from the database after a restart. Hands
// in flight when the process died are not resumed; players are reseated
// with their last persisted stacks and a fresh hand deals as soon as two
// of them are present.
type Recoverer struct {
	db     *db.DB
	logger *log.Logger
}

func NewRecoverer(database *db.DB, logger *log.Logger) *Recoverer {
	return &Recoverer{db: database, logger: logger.WithPrefix("recovery")}
}

// Recover registers every active table with the manager and reseats its
// players. Returns the number of tables brought back.
func (r *Recoverer) Recover(manager *engine.TableManager) (int, error) {
	var tables []db.TableRecord
	err := r.db.Where("status IN ? AND completed_at IS NULL", []string{"waiting", "playing"}).Find(&tables).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query active tables: %w", err)
	}
	if len(tables) == 0 {
		r.logger.Info("no tables to recover")
		return 0, nil
	}

	recovered := 0
	for _, record := range tables {
		var seats []db.SeatRecord
		err := r.db.Where("table_id = ? AND left_at IS NULL", record.ID).
			Order("seat_number ASC").
			Find(&seats).Error
		if err != nil {
			r.logger.Error("failed to load seats", "table", record.ID, "err", err)
			continue
		}
		if len(seats) == 0 {
			r.logger.Info("skipping empty table", "table", record.ID)
			r.markCompleted(record.ID)
			continue
		}

		config := models.TableConfig{
			SmallBlind:    record.SmallBlind,
			BigBlind:      record.BigBlind,
			MaxPlayers:    record.MaxPlayers,
			MinBuyIn:      record.MinBuyIn,
			MaxBuyIn:      record.MaxBuyIn,
			ActionTimeout: record.ActionTimeout,
		}
		table, err := manager.CreateTable(record.ID, config)
		if err != nil {
			r.logger.Error("failed to recreate table", "table", record.ID, "err", err)
			continue
		}

		for _, seat := range seats {
			seatNumber := seat.SeatNumber
			if err := table.AddPlayer(seat.UserID, seat.UserID, &seatNumber, seat.Chips); err != nil {
				r.logger.Error("failed to reseat player",
					"table", record.ID, "player", seat.UserID, "err", err)
			}
		}

		r.logger.Info("table recovered", "table", record.ID, "seats", len(seats))
		recovered++
	}
	return recovered, nil
}

// markCompleted closes a table record that has nothing left to recover.
func (r *Recoverer) markCompleted(tableID string) {
	now := time.Now().UTC()
	err := r.db.Model(&db.TableRecord{}).
		Where("id = ?", tableID).
		Updates(map[string]interface{}{"status": "completed", "completed_at": &now}).Error
	if err != nil {
		r.logger.Error("failed to close table record", "table", tableID, "err", err)
	}
}
