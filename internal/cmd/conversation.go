package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/storage"
	"github.com/dotcommander/deepresearch/internal/storage/cache"
)

// conversations is the saved chat history: a title index plus one message
// payload per conversation, both keyed by ID.
type conversations struct {
	index *storage.DB
	msgs  *cache.Conversations
}

func openConversations(cachePath string) (*conversations, error) {
	msgs, err := cache.NewConversations(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open conversation cache: %w", err)
	}
	index, err := storage.Open(filepath.Join(cachePath, string(cache.ConversationCache)))
	if err != nil {
		return nil, fmt.Errorf("open conversation index: %w", err)
	}
	return &conversations{index: index, msgs: msgs}, nil
}

func (c *conversations) Close() error {
	return c.index.Close()
}

// resolve finds a conversation by ID prefix or title. With latest set, a
// query that matches nothing (the empty query included) resolves to the
// most recent conversation.
func (c *conversations) resolve(in string, latest bool) (*storage.Entry, error) {
	e, err := c.index.Find(in)
	if err == nil {
		return e, nil
	}
	if !latest || !errors.Is(err, storage.ErrNoMatches) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	head, err := c.index.FindHEAD()
	if err != nil {
		return nil, fmt.Errorf("find latest conversation: %w", err)
	}
	return head, nil
}

func (c *conversations) messages(id string) ([]proto.Message, error) {
	var msgs []proto.Message
	if err := c.msgs.Read(id, &msgs); err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", storage.Short(id), err)
	}
	return msgs, nil
}

// put writes the payload first so the index never points at a missing
// file. A failed index write removes the payload again.
func (c *conversations) put(id, title, api, model string, msgs []proto.Message) error {
	if err := c.msgs.Write(id, &msgs); err != nil {
		return err //nolint:wrapcheck
	}
	if err := c.index.Save(id, title, api, model); err != nil {
		_ = c.msgs.Delete(id)
		return err //nolint:wrapcheck
	}
	return nil
}

func (c *conversations) remove(id string) error {
	if err := c.index.Delete(id); err != nil {
		return fmt.Errorf("delete conversation index: %w", err)
	}
	if err := c.msgs.Delete(id); err != nil {
		return fmt.Errorf("delete conversation payload: %w", err)
	}
	return nil
}

// conversationPlan says which conversation a chat reads from and which one
// it writes to, and with what model.
type conversationPlan struct {
	ReadID  string
	WriteID string
	Title   string
	API     string
	Model   string
}

// plan resolves --continue, --continue-last, --title and --show.
// Continuing without a new title appends to the conversation it reads and
// keeps that conversation's title and model; a title starts a new
// conversation, or reuses the one already saved under that title.
func (c *conversations) plan(cfg *config.Config) (conversationPlan, error) {
	pl := conversationPlan{Title: cfg.Title, API: cfg.API, Model: cfg.Model}
	appendTo := cfg.ContinueLast || (cfg.Continue != "" && cfg.Title == "")

	if query := ordered.First(cfg.Continue, cfg.Show); query != "" || appendTo || cfg.ShowLast {
		e, err := c.resolve(query, cfg.Show == "")
		if err != nil {
			return conversationPlan{}, errs.Wrap(err, "Could not find the conversation.")
		}
		pl.ReadID = e.ID
		if e.API != nil && e.Model != nil {
			pl.API, pl.Model = *e.API, *e.Model
		}
		if appendTo && pl.Title == "" {
			pl.Title = e.Title
		}
	}

	switch {
	case appendTo:
		pl.WriteID = pl.ReadID
	case storage.SHA1Regexp.MatchString(pl.Title):
		pl.WriteID = pl.Title
	case pl.Title != "":
		if e, err := c.index.Find(pl.Title); err == nil {
			pl.WriteID = e.ID
		}
	}
	if pl.WriteID == "" {
		pl.WriteID = storage.NewID()
	}
	return pl, nil
}

// saveChat stores msgs under the planned conversation. Untitled
// conversations are named after the first line of the last prompt. Status
// lines are printed only when announce is set, so per-turn saves stay
// silent.
func (c *conversations) saveChat(cfg *config.Config, msgs []proto.Message, announce bool) error {
	quiet := cfg.Quiet || !announce
	styles := present.StderrStyles()
	if cfg.NoCache {
		if !quiet {
			fmt.Fprintf(os.Stderr, "\nConversation was not saved because %s or %s is set.\n",
				styles.InlineCode.Render("--no-cache"), styles.InlineCode.Render("NO_CACHE"))
		}
		return nil
	}

	title := strings.TrimSpace(cfg.CacheWriteToTitle)
	if title == "" || storage.SHA1Regexp.MatchString(title) {
		title = firstLine(lastPrompt(msgs))
	}
	if err := c.put(cfg.CacheWriteToID, title, cfg.API, cfg.Model, msgs); err != nil {
		return errs.Wrapf(err, "Could not save conversation %s. Use %s to chat without saving.",
			storage.Short(cfg.CacheWriteToID), styles.InlineCode.Render("--no-cache"))
	}

	if !quiet {
		fmt.Fprintln(os.Stderr, "\nConversation saved:",
			styles.InlineCode.Render(storage.Short(cfg.CacheWriteToID)), styles.Comment.Render(title))
	}
	return nil
}

func lastPrompt(msgs []proto.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == proto.RoleUser && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
