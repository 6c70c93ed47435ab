package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/christopherklint97/dayscore/internal/scoring"
)

// timestampLayout sorts lexically in UTC.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ScoreRecord is a saved daily score.
type ScoreRecord struct {
	scoring.Result
	ScoredAt time.Time `json:"scored_at"`
}

// SaveScore stores r under its date, replacing an earlier score for that day.
func (db *DB) SaveScore(r scoring.Result) error {
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return fmt.Errorf("encoding breakdown: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO scores (date, score, grade, breakdown, scored_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			score = excluded.score,
			grade = excluded.grade,
			breakdown = excluded.breakdown,
			scored_at = excluded.scored_at`,
		r.Date, r.Score, r.Grade, string(breakdown), time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("saving score for %s: %w", r.Date, err)
	}
	return nil
}

// GetScores returns saved scores between from and to inclusive, oldest first.
func (db *DB) GetScores(from, to string) ([]ScoreRecord, error) {
	rows, err := db.Query(
		`SELECT date, score, grade, breakdown, scored_at FROM scores
		 WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		var breakdown, scoredStr string
		if err := rows.Scan(&rec.Date, &rec.Score, &rec.Grade, &breakdown, &scoredStr); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown for %s: %w", rec.Date, err)
		}
		rec.Description = scoring.Describe(rec.Score)
		if t, err := time.Parse(timestampLayout, scoredStr); err == nil {
			rec.ScoredAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReportRecord is a saved period report. Body holds the report as JSON.
type ReportRecord struct {
	ID        string          `json:"id"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	AvgScore  int             `json:"avg_score"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveReport stores body as JSON under a new ID and returns the ID.
func (db *DB) SaveReport(startDate, endDate string, avgScore int, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO reports (id, start_date, end_date, avg_score, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, startDate, endDate, avgScore, string(data), time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return "", fmt.Errorf("saving report: %w", err)
	}
	return id, nil
}

// LatestReport returns the most recently saved report, or nil if there is none.
func (db *DB) LatestReport() (*ReportRecord, error) {
	return db.queryReport(`SELECT id, start_date, end_date, avg_score, body, created_at
		FROM reports ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

// GetReport returns the report with id, or nil if there is none.
func (db *DB) GetReport(id string) (*ReportRecord, error) {
	return db.queryReport(`SELECT id, start_date, end_date, avg_score, body, created_at
		FROM reports WHERE id = ?`, id)
}

func (db *DB) queryReport(query string, args ...any) (*ReportRecord, error) {
	var rec ReportRecord
	var body, createdStr string
	err := db.QueryRow(query, args...).Scan(&rec.ID, &rec.StartDate, &rec.EndDate, &rec.AvgScore, &body, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	rec.Body = json.RawMessage(body)
	if t, err := time.Parse(timestampLayout, createdStr); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
