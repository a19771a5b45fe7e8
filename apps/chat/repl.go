package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
)

var errQuit = errors.New("quit")

// repl drives a chat.Session from line commands. Plain lines are sent to the open conversation.
type repl struct {
	session     *chat.Session
	out         io.Writer
	loc         *time.Location
	interactive bool
	filter      chat.ConversationFilter

	mu      sync.Mutex
	notices []chat.Notice
}

func newREPL(session *chat.Session, out io.Writer, loc *time.Location, interactive bool) *repl {
	r := &repl{session: session, out: out, loc: loc, interactive: interactive}
	session.Subscribe(r.onEvent)
	return r
}

func (r *repl) onEvent(e chat.Event) {
	if e.Kind != chat.EventNotice || e.Notice == nil {
		return
	}
	r.mu.Lock()
	r.notices = append(r.notices, *e.Notice)
	r.mu.Unlock()
}

func (r *repl) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *repl) printUsage() {
	r.printf("Commands:\n")
	r.printf("  /list [TEXT]   - list conversations, optionally matching TEXT\n")
	r.printf("  /role [ROLE]   - only list STUDENT, PARENT, TEACHER or ADMIN conversations (ALL by default)\n")
	r.printf("  /open ID       - open the conversation with contact ID\n")
	r.printf("  /close         - close the open conversation\n")
	r.printf("  /reload        - reload conversations\n")
	r.printf("  /quit          - exit\n")
	r.printf("Any other line is sent to the open conversation.\n")
}

// run reads commands from in until EOF or /quit.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	if err := r.session.LoadConversations(ctx); err == nil {
		r.printList()
	}
	r.flushNotices()

	scanner := bufio.NewScanner(in)
	for {
		if r.interactive {
			r.printf("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		err := r.exec(ctx, scanner.Text())
		r.session.Wait()
		r.flushNotices()
		if err == errQuit {
			return nil
		}
		if err != nil {
			r.printf("error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit":
		return errQuit
	case "/help":
		r.printUsage()
	case "/list":
		r.filter.SearchText = strings.Join(args, " ")
		r.printList()
	case "/role":
		role, err := core.ParseRole(strings.Join(args, ""))
		if err != nil {
			return err
		}
		r.filter.Role = role
		r.printList()
	case "/reload":
		if err := r.session.LoadConversations(ctx); err != nil {
			return nil // reported as a notice
		}
		r.printList()
	case "/open":
		if len(args) != 1 {
			r.printUsage()
			return nil
		}
		return r.open(ctx, args[0])
	case "/close":
		r.session.Close()
		r.printf("conversation closed\n")
	default:
		r.printf("unknown command %q\n", cmd)
		r.printUsage()
	}
	return nil
}

func (r *repl) open(ctx context.Context, id string) error {
	if _, err := r.session.OpenContact(ctx, id); err != nil {
		return nil // reported as a notice
	}
	if err := r.session.SelectConversation(ctx, id); err != nil {
		return err
	}
	r.session.Wait()
	r.printThread()
	return nil
}

func (r *repl) send(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if r.session.ThreadState() != chat.StateReady {
		r.printf("open a conversation first (/open ID)\n")
		return nil
	}
	if _, ok := r.session.SendMessage(ctx, line); !ok {
		return nil
	}
	r.session.Wait()
	r.printThread()
	return nil
}

func (r *repl) flushNotices() {
	r.mu.Lock()
	notices := r.notices
	r.notices = nil
	r.mu.Unlock()

	for _, n := range notices {
		r.printf("! %s\n", n.Message())
	}
}

func (r *repl) printList() {
	convs := r.session.Conversations(r.filter)
	if len(convs) == 0 {
		r.printf("no conversations\n")
		return
	}
	for _, c := range convs {
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d unread]", c.UnreadCount)
		}
		r.printf("  %-12s %s (%s)%s - %s\n", c.ID, displayName(c.Peer), c.Peer.Role, unread, c.LastMessagePreview)
	}
}

func (r *repl) printThread() {
	snap := r.session.Snapshot()
	conv, _ := r.session.Conversation(snap.ConversationID)

	switch snap.State {
	case chat.StateIdle:
		r.printf("no open conversation\n")
		return
	case chat.StateLoading:
		r.printf("loading %s...\n", displayName(conv.Peer))
		return
	case chat.StateError:
		r.printf("could not load the conversation with %s\n", displayName(conv.Peer))
		return
	}

	r.printf("== %s (%s) ==\n", displayName(conv.Peer), conv.Peer.Role)
	if len(snap.Groups) == 0 {
		r.printf("  no messages yet\n")
	}
	for _, g := range snap.Groups {
		r.printf("-- %s --\n", g.Label)
		for _, msg := range g.Messages {
			author := displayName(conv.Peer)
			if msg.SenderID == r.session.UserID() {
				author = "you"
			}
			status := ""
			if msg.Pending {
				status = " (not delivered)"
			}
			r.printf("  [%s] %s: %s%s\n", msg.CreatedAt.In(r.loc).Format("15:04"), author, msg.Content, status)
		}
	}
}

func displayName(p chat.Peer) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
