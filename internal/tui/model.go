package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/iamvkosarev/notechat/internal/usecase"
	"github.com/iamvkosarev/notechat/pkg/local"
)

const helpText = "/new [title]  /clear  /export  /search <query>  /help  ctrl+c quit"

// ChatPort is the part of the chat use case the panel drives.
type ChatPort interface {
	Send(ctx context.Context, conversationID, query, activeNote string) (usecase.Reply, error)
	TokensUsed() int64
}

type ConversationPort interface {
	Ensure(ctx context.Context) (model.Conversation, error)
	Create(ctx context.Context, title string) (model.Conversation, error)
	Clear(ctx context.Context, id string) (model.Conversation, error)
	Export(ctx context.Context, id string) (string, error)
}

type SearchPort interface {
	Search(ctx context.Context, query string, opts usecase.SearchOptions) ([]model.SearchResult, error)
}

type Deps struct {
	Chat          ChatPort
	Conversations ConversationPort
	Search        SearchPort
	Language      local.Language
	ActiveNote    string
}

type replyMsg struct {
	reply usecase.Reply
	err   error
}

// Model is the Bubble Tea chat panel.
type Model struct {
	Deps
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	conv     model.Conversation
	results  []model.SearchResult
	status   string
	pending  bool
	ready    bool
}

func New(ctx context.Context, deps Deps, conv model.Conversation) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your notes, /help for commands"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		Deps:     deps,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		conv:     conv,
		status:   helpText,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case replyMsg:
		m.pending = false
		if msg.reply.Conversation.ID != "" {
			m.conv = msg.reply.Conversation
		}
		switch {
		case msg.err != nil:
			m.status = usecase.Notice(msg.err, m.Language)
		case msg.reply.ContextTrimmed:
			m.status = usecase.NoticeContextTrimmed.Text(m.Language)
		default:
			m.status = usecase.NoticeTokensUsed.Format(m.Language, m.Chat.TokensUsed())
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.pending {
		return m, nil
	}
	m.input.Reset()
	if strings.HasPrefix(text, "/") {
		m.command(text)
		m.refresh()
		return m, nil
	}

	m.pending = true
	m.results = nil
	m.status = "..."
	ctx, chat, convID, active := m.ctx, m.Chat, m.conv.ID, m.ActiveNote
	return m, func() tea.Msg {
		reply, err := chat.Send(ctx, convID, text, active)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) command(text string) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	m.results = nil
	switch name {
	case "/new":
		conv, err := m.Conversations.Create(m.ctx, arg)
		if err != nil {
			m.status = usecase.Notice(err, m.Language)
			return
		}
		m.conv = conv
		m.status = fmt.Sprintf("%s (%s)", conv.Title, conv.ID)
	case "/clear":
		conv, err := m.Conversations.Clear(m.ctx, m.conv.ID)
		if err != nil {
			m.status = usecase.Notice(err, m.Language)
			return
		}
		m.conv = conv
		m.status = usecase.NoticeHistoryCleared.Text(m.Language)
	case "/export":
		p, err := m.Conversations.Export(m.ctx, m.conv.ID)
		if err != nil {
			m.status = usecase.Notice(err, m.Language)
			return
		}
		m.status = usecase.NoticeExported.Format(m.Language, p)
	case "/search":
		results, err := m.Search.Search(m.ctx, arg, usecase.DefaultSearchOptions())
		if err != nil {
			m.status = usecase.Notice(err, m.Language)
			return
		}
		m.results = results
		m.status = fmt.Sprintf("%d results for %q", len(results), arg)
	default:
		m.status = helpText
	}
}

func (m *Model) refresh() {
	if m.results != nil {
		m.viewport.SetContent(renderResults(m.results))
	} else {
		m.viewport.SetContent(renderConversation(m.conv, m.viewport.Width))
	}
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("notechat: " + m.conv.Title)
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func renderConversation(conv model.Conversation, width int) string {
	if len(conv.Messages) == 0 {
		return "No messages yet."
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-2))
	blocks := make([]string, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		label := roleStyle(msg.Role).Render(roleLabel(msg.Role))
		stamp := timeStyle.Render(msg.Timestamp.Local().Format("15:04"))
		blocks = append(blocks, label+" "+stamp+"\n"+wrap.Render(msg.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func renderResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return "No results."
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		source := r.Source.Path
		if r.Type == model.SearchResultMessage {
			source = r.Source.Title
		}
		title := fmt.Sprintf("%d. [%s] %s  score=%.3f", i+1, r.Type, source, r.Score)
		blocks = append(blocks, highlightStyle.Render(title)+"\n"+r.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "You"
	case model.RoleAssistant:
		return "AI"
	default:
		return "System"
	}
}

func roleStyle(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return userStyle
	case model.RoleAssistant:
		return assistantStyle
	default:
		return systemStyle
	}
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	systemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
	timeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
