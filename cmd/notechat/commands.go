package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/iamvkosarev/notechat/internal/app"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/iamvkosarev/notechat/internal/tui"
	"github.com/iamvkosarev/notechat/internal/usecase"
	"github.com/iamvkosarev/notechat/internal/vault"
)

const usage = `Usage: notechat [-config file] [-vault dir] <command>

Commands:
  ask [-c id] [-active note.md] <query...>   one chat turn
  chat [-c id] [-active note.md]             terminal chat panel
  search [-case] [-n N] <query...>           search notes and chat history
  upload [-c id] <file>                      attach a file to a conversation
  history list | show <id> | export <id> | clear <id> | delete <id>
          rename <id> <title> | transcript [query] | clear-transcript
  settings show | set <key> <value>

Flags:
`

var errUsage = errors.New("usage")

func dispatch(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "ask":
		return cmdAsk(ctx, a, args[1:], w)
	case "chat":
		return cmdChat(ctx, a, args[1:])
	case "search":
		return cmdSearch(ctx, a, args[1:], w)
	case "upload":
		return cmdUpload(ctx, a, args[1:], w)
	case "history":
		return cmdHistory(ctx, a, args[1:], w)
	case "settings":
		return cmdSettings(a, args[1:], w)
	default:
		return errUsage
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func cmdAsk(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	fs := newFlagSet("ask")
	convID := fs.String("c", "", "conversation id (default: current)")
	active := fs.String("active", "", "vault path of the open note")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	reply, err := a.Chat.Send(ctx, *convID, strings.Join(fs.Args(), " "), *active)
	if err != nil {
		return err
	}
	language := a.Settings.Settings().Language
	if reply.ContextTrimmed {
		fmt.Fprintln(w, usecase.NoticeContextTrimmed.Text(language))
	}
	fmt.Fprintln(w, reply.Message.Content)
	fmt.Fprintln(w, usecase.NoticeTokensUsed.Format(language, a.Chat.TokensUsed()))
	return nil
}

func cmdChat(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("chat")
	convID := fs.String("c", "", "conversation id (default: current)")
	active := fs.String("active", "", "vault path of the open note")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	var (
		conv model.Conversation
		err  error
	)
	if *convID != "" {
		conv, err = a.Conversations.SetCurrent(ctx, *convID)
	} else {
		conv, err = a.Conversations.Ensure(ctx)
	}
	if err != nil {
		return err
	}
	m := tui.New(ctx, tui.Deps{
		Chat:          a.Chat,
		Conversations: a.Conversations,
		Search:        a.Search,
		Language:      a.Settings.Settings().Language,
		ActiveNote:    *active,
	}, conv)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func cmdSearch(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	fs := newFlagSet("search")
	opts := usecase.DefaultSearchOptions()
	fs.BoolVar(&opts.CaseSensitive, "case", false, "case sensitive match")
	fs.IntVar(&opts.MaxResults, "n", opts.MaxResults, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	results, err := a.Search.Search(ctx, strings.Join(fs.Args(), " "), opts)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for _, r := range results {
		source := r.Source.Path
		if r.Type == model.SearchResultMessage {
			source = fmt.Sprintf("%s (%s)", r.Source.Title, r.Source.ID)
		}
		fmt.Fprintf(w, "%.3f [%s] %s\n  %s\n", r.Score, r.Type, source, r.Content)
	}
	return nil
}

func cmdUpload(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	fs := newFlagSet("upload")
	convID := fs.String("c", "", "conversation id (default: current)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	upload, err := usecase.UploadFromPath(fs.Arg(0))
	if err != nil {
		return err
	}
	result, conv, err := a.Chat.Attach(ctx, *convID, upload)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, usecase.NoticeFileProcessed.Format(a.Settings.Settings().Language, result.FilePath))
	fmt.Fprintf(w, "conversation %s now has %d messages\n", conv.ID, len(conv.Messages))
	return nil
}

func cmdHistory(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	language := a.Settings.Settings().Language
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		conversations, err := a.Conversations.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, conv := range conversations {
			fmt.Fprintf(tw, "%s\t%s\t%d messages\t%d tokens\t%s\n",
				conv.ID, conv.Title, len(conv.Messages), conv.TokenCount(), conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	case "show":
		if len(rest) != 1 {
			return errUsage
		}
		conv, err := a.Conversations.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# %s\n\n%s", conv.Title, vault.RenderMarkdown(conv))
		return nil
	case "export":
		if len(rest) != 1 {
			return errUsage
		}
		p, err := a.Conversations.Export(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, usecase.NoticeExported.Format(language, p))
		return nil
	case "clear":
		if len(rest) != 1 {
			return errUsage
		}
		if _, err := a.Conversations.Clear(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(w, usecase.NoticeHistoryCleared.Text(language))
		return nil
	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		return a.Conversations.Delete(ctx, rest[0])
	case "rename":
		if len(rest) < 2 {
			return errUsage
		}
		conv, err := a.Conversations.Rename(ctx, rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, conv.Title)
		return nil
	case "transcript":
		lines, err := a.History.SearchTranscript(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return nil
	case "clear-transcript":
		if err := a.History.ClearTranscript(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, usecase.NoticeHistoryCleared.Text(language))
		return nil
	default:
		return errUsage
	}
}

func cmdSettings(a *app.App, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "show":
		settings := a.Settings.Settings()
		if settings.APIKey != "" {
			settings.APIKey = "********"
		}
		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "set":
		if len(args) < 3 {
			return errUsage
		}
		if _, err := a.Settings.Set(args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s saved to %s\n", args[1], a.Settings.Path())
		return nil
	default:
		return errUsage
	}
}
