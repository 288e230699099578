// chattail is a terminal client for the community chat. It drives the same
// synchronization engine the web client uses: token sessions, the polled
// message window, unread tracking and new-message notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chat-bankrot/community-chat/internal/client"
)

type stderrAlerts struct{}

func (stderrAlerts) Error(title, detail string) { fmt.Fprintf(os.Stderr, "! %s: %s\n", title, detail) }
func (stderrAlerts) Info(title, detail string)  { fmt.Fprintf(os.Stderr, "* %s: %s\n", title, detail) }

// bellNotifier rings the terminal bell as the audio cue and prints the
// notification line to stderr so it survives piped stdout.
type bellNotifier struct{}

func (bellNotifier) PlayCue() { fmt.Fprint(os.Stderr, "\a") }
func (bellNotifier) Show(title, body string) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", title, body)
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chattail.json"
	}
	return filepath.Join(home, ".chattail.json")
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: chattail [flags] <command> [args]

Commands:
  login <token>        verify a token and store the session
  logout               drop the token (author name is kept)
  name <author-name>   set the display name used when posting
  send <text>          post a message (use -reply to answer one)
  tail                 follow the chat, printing new messages
  show                 print the current window once
  search <query>       filter the window by content or author
  status               print subscription state

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(0)

	baseURL := flag.String("base", envOr("CHAT_BASE_URL", "http://localhost:8080"), "server base URL")
	sessionPath := flag.String("session", defaultSessionPath(), "session file path")
	replyTo := flag.Int64("reply", 0, "message id to reply to (send)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	store, err := client.LoadSession(*sessionPath)
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	api := client.NewClient(*baseURL, store.Token)
	gateway := client.NewGateway(bellNotifier{})
	gateway.RequestPermission(func() client.Permission { return client.PermissionGranted })

	eng := client.NewEngine(api, store, gateway, stderrAlerts{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flag.Arg(0)
	switch cmd {
	case "login":
		if flag.NArg() < 2 {
			log.Fatalf("login requires a token")
		}
		runLogin(ctx, eng, store, flag.Arg(1))
	case "logout":
		if err := eng.Logout(); err != nil {
			log.Fatalf("logout: %v", err)
		}
		fmt.Println("logged out")
	case "name":
		if flag.NArg() < 2 {
			log.Fatalf("name requires an author name")
		}
		if err := store.SetAuthorName(strings.Join(flag.Args()[1:], " ")); err != nil {
			log.Fatalf("name: %v", err)
		}
	case "send":
		if flag.NArg() < 2 {
			log.Fatalf("send requires message text")
		}
		runSend(ctx, eng, strings.Join(flag.Args()[1:], " "), *replyTo)
	case "tail":
		runTail(ctx, eng)
	case "show":
		runShow(ctx, eng)
	case "search":
		if flag.NArg() < 2 {
			log.Fatalf("search requires a query")
		}
		runSearch(ctx, eng, strings.Join(flag.Args()[1:], " "))
	case "status":
		runStatus(ctx, eng, api, store)
	default:
		usage()
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runLogin(ctx context.Context, eng *client.Engine, store *client.SessionStore, token string) {
	// reuse the magic-link path so the token is verified before it is kept
	if _, err := eng.EstablishFromURL(ctx, "chattail:///?token="+token); err != nil {
		log.Fatalf("login: %v", err)
	}
	if eng.SubscriptionActive() {
		fmt.Println("logged in, subscription active")
	} else {
		fmt.Println("logged in, subscription inactive")
	}
	_ = store
}

func runSend(ctx context.Context, eng *client.Engine, text string, replyTo int64) {
	eng.SetCompose(text)
	var reply *int64
	if replyTo > 0 {
		reply = &replyTo
	}
	if err := eng.RefreshSubscription(ctx); err != nil {
		log.Fatalf("subscription: %v", err)
	}
	if err := eng.SendMessage(ctx, reply, nil); err != nil {
		os.Exit(1)
	}
}

func runShow(ctx context.Context, eng *client.Engine) {
	if err := eng.RefreshSubscription(ctx); err != nil {
		log.Fatalf("subscription: %v", err)
	}
	if err := eng.LoadMessages(ctx, false); err != nil {
		os.Exit(1)
	}
	eng.SetViewActive(true)
	printForest(eng.Messages())
	for _, t := range eng.TypingUsers() {
		name := "Someone"
		if t.AuthorName != nil {
			name = *t.AuthorName
		}
		fmt.Printf("... %s is typing\n", name)
	}
}

func runTail(ctx context.Context, eng *client.Engine) {
	if err := eng.RefreshSubscription(ctx); err != nil {
		log.Fatalf("subscription: %v", err)
	}
	if !eng.Entitled() {
		log.Fatalf("no active subscription")
	}

	if err := eng.LoadMessages(ctx, false); err != nil {
		os.Exit(1)
	}
	eng.SetViewActive(true)
	printForest(eng.Messages())

	seen := map[int64]bool{}
	for _, m := range eng.Messages() {
		seen[m.ID] = true
	}

	eng.StartPolling(ctx)
	defer eng.StopPolling()
	go eng.Background().Run(ctx)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs := eng.Messages()
			// window is newest first; print the backlog oldest first
			for i := len(msgs) - 1; i >= 0; i-- {
				if !seen[msgs[i].ID] {
					seen[msgs[i].ID] = true
					printMessage(msgs[i], 0)
				}
			}
		}
	}
}

func runSearch(ctx context.Context, eng *client.Engine, query string) {
	if err := eng.RefreshSubscription(ctx); err != nil {
		log.Fatalf("subscription: %v", err)
	}
	if err := eng.LoadMessages(ctx, false); err != nil {
		os.Exit(1)
	}
	matches, count := eng.Search(query)
	for i := len(matches) - 1; i >= 0; i-- {
		printMessage(matches[i], 0)
	}
	fmt.Printf("%d match(es)\n", count)
}

func runStatus(ctx context.Context, eng *client.Engine, api *client.Client, store *client.SessionStore) {
	if store.Token() == "" {
		fmt.Println("not logged in")
		return
	}
	status, err := api.Subscription(ctx)
	if err != nil {
		log.Fatalf("subscription: %v", err)
	}
	state := "expired"
	if status.IsActive {
		state = "active"
	}
	fmt.Printf("plan=%s state=%s expires=%s\n", status.Plan, state, status.ExpiresAt.Format("2006-01-02 15:04"))
	_ = eng
}

func printForest(msgs []client.Message) {
	var walk func(nodes []*client.Node)
	walk = func(nodes []*client.Node) {
		for i := len(nodes) - 1; i >= 0; i-- {
			printMessage(nodes[i].Message, nodes[i].Depth)
			walk(nodes[i].Replies)
		}
	}
	walk(client.BuildForest(msgs))
}

func printMessage(m client.Message, depth int) {
	name := "Someone"
	if m.AuthorName != nil && *m.AuthorName != "" {
		name = *m.AuthorName
	}
	indent := strings.Repeat("  ", depth)
	marks := ""
	if m.IsPinned {
		marks += " [pinned]"
	}
	if m.EditedAt != nil {
		marks += " (edited)"
	}
	fmt.Printf("%s#%d %s %s%s: %s\n", indent, m.ID, m.CreatedAt.Format("15:04"), name, marks, m.Content)
	for _, r := range m.Reactions {
		fmt.Printf("%s   %s x%d\n", indent, r.Emoji, r.Count)
	}
}
