package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists decisions to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the monitor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			run_id            TEXT PRIMARY KEY,
			timestamp         INTEGER NOT NULL,
			timeframe         TEXT NOT NULL,
			price             REAL,
			stage_reached     INTEGER,
			stage1_score      REAL,
			stage1_action     TEXT,
			stage2_score      REAL,
			stage2_action     TEXT,
			confidence        TEXT,
			position_size     REAL,
			stop_loss         REAL,
			take_profit       REAL,
			oracle_label      TEXT,
			oracle_confidence REAL,
			final_action      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(timestamp)`,

		`CREATE TABLE IF NOT EXISTS factor_scores (
			run_id   TEXT NOT NULL,
			stage    INTEGER NOT NULL,
			name     TEXT NOT NULL,
			raw      REAL,
			weighted REAL,
			note     TEXT,
			PRIMARY KEY (run_id, stage, name)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordDecision writes the decision and its factor breakdown in one transaction.
func (r *SQLiteRecorder) RecordDecision(d *model.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		s1Score, s2Score, size, sl, tp, oConf float64
		s1Action, s2Action, conf, oLabel      string
	)
	if d.StageOne != nil {
		s1Score, s1Action = d.StageOne.NormalizedScore, string(d.StageOne.Action)
	}
	if d.StageTwo != nil {
		s2Score, s2Action = d.StageTwo.NormalizedScore, string(d.StageTwo.Action)
		conf, size = d.StageTwo.Confidence, d.StageTwo.PositionSize
		if d.StageTwo.Risk != nil {
			sl, tp = d.StageTwo.Risk.StopLoss, d.StageTwo.Risk.TakeProfit
		}
	}
	if d.StageThree != nil {
		oLabel, oConf = d.StageThree.Label, d.StageThree.Confidence
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO decisions
		(run_id, timestamp, timeframe, price, stage_reached,
		 stage1_score, stage1_action, stage2_score, stage2_action,
		 confidence, position_size, stop_loss, take_profit,
		 oracle_label, oracle_confidence, final_action)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.RunID, d.At.Unix(), string(d.Timeframe), d.Price, d.ReachedStage(),
		s1Score, s1Action, s2Score, s2Action,
		conf, size, sl, tp,
		oLabel, oConf, string(d.FinalAction),
	); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	insertFactors := func(stage int, factors []model.FactorScore) error {
		for _, f := range factors {
			if _, err := tx.Exec(`INSERT INTO factor_scores (run_id, stage, name, raw, weighted, note)
				VALUES (?,?,?,?,?,?)`,
				d.RunID, stage, f.Name, f.RawScore, f.Weighted, f.Commentary,
			); err != nil {
				return fmt.Errorf("insert factor %s: %w", f.Name, err)
			}
		}
		return nil
	}
	if d.StageOne != nil {
		if err := insertFactors(1, d.StageOne.Factors); err != nil {
			return err
		}
	}
	if d.StageTwo != nil {
		if err := insertFactors(2, d.StageTwo.Factors); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns the newest decisions first.
func (r *SQLiteRecorder) Recent(limit int) ([]Entry, error) {
	rows, err := r.db.Query(`SELECT run_id, timestamp, timeframe, price, stage_reached,
		stage1_score, stage2_score, oracle_label, final_action
		FROM decisions ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			ts     int64
			tf     string
			label  string
			action string
		)
		if err := rows.Scan(&e.RunID, &ts, &tf, &e.Price, &e.StageReached,
			&e.StageOneScore, &e.StageTwoScore, &label, &action); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.At = time.Unix(ts, 0).UTC()
		e.Timeframe = model.Timeframe(tf)
		e.OracleLabel = label
		e.FinalAction = model.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
