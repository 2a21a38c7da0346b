// Command admin is the operator tool for the travelmate database. Purging a
// request frees the pair to send a new one.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/config"
	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/models"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: admin <command> [args]

Commands:
  purge-pair <user_a> <user_b>      delete the request between two users
  purge-declined [older_than_days]  delete declined requests (default 30 days)
  stats                             print row counts
  token <user_id> [hours]           issue an API token (default 24 hours)`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("admin: failed to load config")
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]

	if command == "token" {
		if err := issueToken(cfg, args); err != nil {
			log.WithFields(failureFields(command, err)).Fatal("admin: command failed")
		}
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("admin: failed to open database")
	}
	defer db.Close()

	switch command {
	case "purge-pair":
		if len(args) != 2 {
			fmt.Println("Usage: admin purge-pair <user_a> <user_b>")
			os.Exit(1)
		}
		err = purgePair(ctx, db, args[0], args[1])
	case "purge-declined":
		days := 30
		if len(args) > 0 {
			days, err = strconv.Atoi(args[0])
			if err != nil || days < 0 {
				fmt.Println("Invalid age. Please provide a non-negative number of days.")
				os.Exit(1)
			}
		}
		err = purgeDeclined(ctx, db, time.Duration(days)*24*time.Hour)
	case "stats":
		err = printStats(ctx, db)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		log.WithFields(failureFields(command, err)).Fatal("admin: command failed")
	}
}

// failureFields describes a failed command, unpacking postgres errors.
func failureFields(command string, err error) logrus.Fields {
	fields := logrus.Fields{"command": command, "error": err.Error()}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		fields["error"] = pqErr.Message
		fields["pg_code"] = string(pqErr.Code)
	}
	return fields
}

func purgePair(ctx context.Context, db *sql.DB, a, b string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM connection_requests WHERE pair_key = $1`, models.PairKey(a, b))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	fmt.Printf("Purged %d request(s) between %s and %s.\n", n, a, b)
	return nil
}

func purgeDeclined(ctx context.Context, db *sql.DB, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.ExecContext(ctx,
		`DELETE FROM connection_requests WHERE status = $1 AND responded_at < $2`,
		string(models.RequestDeclined), cutoff)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	fmt.Printf("Purged %d declined request(s) answered before %s.\n", n, cutoff.Format(time.RFC3339))
	return nil
}

func printStats(ctx context.Context, db *sql.DB) error {
	queries := []struct {
		label string
		query string
		args  []interface{}
	}{
		{"users", `SELECT COUNT(*) FROM users`, nil},
		{"pending requests", `SELECT COUNT(*) FROM connection_requests WHERE status = $1`, []interface{}{string(models.RequestPending)}},
		{"accepted requests", `SELECT COUNT(*) FROM connection_requests WHERE status = $1`, []interface{}{string(models.RequestAccepted)}},
		{"direct rooms", `SELECT COUNT(*) FROM chat_rooms WHERE type = $1`, []interface{}{string(models.RoomDirect)}},
		{"gatherings", `SELECT COUNT(*) FROM chat_rooms WHERE type = $1`, []interface{}{string(models.RoomGathering)}},
		{"messages", `SELECT COUNT(*) FROM messages`, nil},
		{"telegram links", `SELECT COUNT(*) FROM users WHERE telegram_chat_id IS NOT NULL`, nil},
	}

	for _, q := range queries {
		var n int64
		if err := db.QueryRowContext(ctx, q.query, q.args...).Scan(&n); err != nil {
			return fmt.Errorf("%s: %w", q.label, err)
		}
		fmt.Printf("%-18s %d\n", q.label, n)
	}
	return nil
}

func issueToken(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: admin token <user_id> [hours]")
	}
	hours := 24
	if len(args) > 1 {
		h, err := strconv.Atoi(args[1])
		if err != nil || h <= 0 {
			return errors.New("hours must be a positive integer")
		}
		hours = h
	}
	tok, err := middleware.GenerateToken([]byte(cfg.Auth.JWTSecret), args[0], time.Duration(hours)*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
