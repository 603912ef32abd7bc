// Command chatsync-replay applies a file of captured sync payloads to a
// local store and prints the resulting channel state. It exists to inspect
// how a payload capture lands: which channels change, what the previews and
// unread counts come out as.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/config"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/repository"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
	logger "github.com/Gopher0727/ChatSync/middleware/log"
)

// capture mirrors the shapes the sync layer hands the repository, one
// optional section per payload kind.
type capture struct {
	ChannelList *payload.ChannelList     `json:"channel_list,omitempty"`
	Channels    []*payload.ChannelDetail `json:"channels,omitempty"`
	Messages    []*payload.Message       `json:"messages,omitempty"`
	Users       []*payload.User          `json:"users,omitempty"`
	Threads     []*payload.Thread        `json:"threads,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "", "config file path (optional)")
		dbPath     = flag.String("db", "", "override store directory")
		userID     = flag.String("user", "", "session user id for unread counts")
	)
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: chatsync-replay [flags] <capture.json>")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := run(cfg, log, flag.Arg(0), *userID); err != nil {
		log.ErrorContext(context.Background(), "replay_failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, capturePath, userID string) error {
	ctx := logger.WithTraceID(context.Background(), logger.NewTraceID())

	raw, err := os.ReadFile(capturePath)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	var rec capture
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("decode capture: %w", err)
	}

	db, err := store.Open(&cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	repo := repository.New(db, log)
	var sess *session.Session
	if userID != "" {
		sess = session.New(userID)
	}

	if rec.ChannelList != nil {
		if err := repo.SaveChannelList(ctx, sess, rec.ChannelList); err != nil {
			return err
		}
	}
	for _, d := range rec.Channels {
		if err := repo.SaveChannelDetail(ctx, sess, d); err != nil {
			return err
		}
	}
	if err := repo.SaveUserList(ctx, rec.Users); err != nil {
		return err
	}
	for _, m := range rec.Messages {
		if err := repo.SaveMessage(ctx, sess, m); err != nil {
			log.WarnContext(ctx, "message_replay_skipped", zap.String("id", m.ID), zap.Error(err))
		}
	}
	for _, t := range rec.Threads {
		if err := repo.SaveThread(ctx, sess, t); err != nil {
			log.WarnContext(ctx, "thread_replay_skipped", zap.Error(err))
		}
	}

	return db.View(func(tx *store.ReadTx) error {
		for _, ch := range tx.Channels() {
			preview := "-"
			if ch.Preview != nil {
				preview = ch.Preview.Text
			}
			line := fmt.Sprintf("%-40s sort=%s members=%d preview=%q",
				ch.CID, ch.DefaultSortingAt.Format("2006-01-02T15:04:05Z"), ch.MemberCount, preview)
			if userID != "" {
				unread, mentions := tx.UnreadCount(ch.CID, userID)
				line += fmt.Sprintf(" unread=%d mentions=%d", unread, mentions)
			}
			fmt.Println(line)
		}
		return nil
	})
}
