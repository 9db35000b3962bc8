// Reply agent is an interactive CLI that drafts and sends email
// replies through a language-model backend with sanitized mailbox
// access.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/reply-agent/internal/agent"
	"github.com/hal9000y/reply-agent/internal/auth"
	"github.com/hal9000y/reply-agent/internal/llm"
	"github.com/hal9000y/reply-agent/internal/mailbox"
	"github.com/hal9000y/reply-agent/internal/validate"
)

func main() {
	httpAddr := flag.String("http-addr", "localhost:0", "OAuth callback listen addr")
	oauthTokenFile := flag.String("oauth-token-file", "./data/reply-agent-token.json", "Path to cache google oauth token, empty to avoid storing")
	oauthURLParam := flag.String("oauth-url", "", "OAuth URL")
	envFileParam := flag.String("env-file", "", "Path to env file")

	flag.Parse()

	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ln := mustListen(httpAddr)
	config := mustCreateOauthCfg(ln.Addr().String(), envFileParam, oauthURLParam)

	tok, err := auth.NewToken(config, *oauthTokenFile)
	if err != nil {
		panic(fmt.Errorf("auth.NewToken failed: %w", err))
	}

	defer func() {
		if err := tok.Persist(); err != nil {
			log.Println(fmt.Errorf("tok.Persist failed: %w", err))
		}
	}()

	stopHTTP := serveOAuth(ln, tok)
	defer stopHTTP()

	if err := ensureToken(ctx, config, tok); err != nil {
		fmt.Println("Could not authorize mailbox access:", err)
		return
	}

	gm := mailbox.NewGmail(config, tok)

	backend := llm.NewClient(
		os.Getenv("OPENAI_BASE_URL"),
		mustEnv("OPENAI_API_KEY"),
		os.Getenv("OPENAI_MODEL"),
	)

	userName := gm.DisplayName(ctx)

	s := &session{
		in:        bufio.NewReader(os.Stdin),
		ag:        agent.New(backend, agent.NewTools(gm)),
		gm:        gm,
		sysPrompt: agent.SystemPrompt(userName),
	}

	fmt.Println("\n=== Email Response Agent ===")
	fmt.Println("I can help you respond to your emails.")
	fmt.Println()

	if err := s.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\n\nAgent stopped by user.")
			return
		}
		fmt.Println("\nAgent:", err)
		fmt.Println("Please check your internet connection and try again.")
	}
}

type session struct {
	in        *bufio.Reader
	ag        *agent.Agent
	gm        *mailbox.Gmail
	sysPrompt string
}

// emailResult is one parsed block of the agent's search listing.
type emailResult struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Preview  string
	Note     string
}

func (s *session) run(ctx context.Context) error {
	conv := agent.NewConversation(s.sysPrompt)

	for {
		selected, err := s.searchAndSelect(ctx, conv)
		if err != nil {
			return err
		}
		if selected == nil {
			return nil
		}

		proceed, err := s.alreadyRepliedGate(ctx, selected)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Println("Agent: Understood, skipping this email.")
			if !s.askYesNo("\nWould you like to respond to another email? (y=yes / n=no): ") {
				fmt.Println("Agent: Goodbye!")
				return nil
			}
			conv = agent.NewConversation(s.sysPrompt)
			continue
		}

		if err := s.draftReply(ctx, conv, selected); err != nil {
			return err
		}

		again, err := s.confirmAndSend(ctx, conv)
		if err != nil {
			return err
		}
		if !again {
			fmt.Println("Agent: Goodbye!")
			return nil
		}

		conv = agent.NewConversation(s.sysPrompt)
	}
}

// searchAndSelect asks for a subject and walks the user through
// picking one of the matching emails. A nil result means the user is
// done. The conversation is reset whenever the user starts over.
func (s *session) searchAndSelect(ctx context.Context, conv *agent.Conversation) (*emailResult, error) {
	for {
		subject := s.ask("Which email would you like to respond to? ")
		if subject == "" {
			fmt.Println("No subject provided. Exiting.")
			return nil, nil
		}

		fmt.Println("\nAgent: Searching for that email...")

		conv.AddUser(fmt.Sprintf("Search for emails about: %s. List all results.", subject))
		response, err := s.ag.Advance(ctx, conv)
		if err != nil {
			return nil, err
		}

		emails := parseEmailResults(response)
		if len(emails) == 0 {
			fmt.Printf("\nAgent: %s\n\n", response)
			if !s.askYesNo("Would you like to search again? (y=yes / n=no): ") {
				fmt.Println("Agent: Goodbye!")
				return nil, nil
			}
			*conv = *agent.NewConversation(s.sysPrompt)
			continue
		}

		idx := s.displaySelection(emails)
		if idx == -1 {
			if !s.askYesNo("\nWould you like to search again? (y=yes / n=no): ") {
				fmt.Println("Agent: Goodbye!")
				return nil, nil
			}
			*conv = *agent.NewConversation(s.sysPrompt)
			continue
		}

		return &emails[idx], nil
	}
}

func (s *session) displaySelection(emails []emailResult) int {
	if len(emails) == 1 {
		fmt.Println("\nAgent: I found this email:")
		printEmail("   ", emails[0])
		fmt.Println()
		if s.askYesNo("Is this the email you meant? (y=yes / n=no): ") {
			return 0
		}
		return -1
	}

	fmt.Printf("\nAgent: I found %d emails matching your search:\n\n", len(emails))
	for i, email := range emails {
		fmt.Printf("   %d. From:    %s\n", i+1, email.From)
		fmt.Printf("      Subject: %s\n", email.Subject)
		fmt.Printf("      Preview: %s\n", email.Preview)
		if email.Note != "" {
			fmt.Printf("      %s\n", email.Note)
		}
		fmt.Println()
	}

	for {
		choice := s.askChoice(fmt.Sprintf("Which email would you like to respond to? (1-%d / n=no): ", len(emails)))
		if choice == "n" || choice == "no" {
			return -1
		}
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(emails) {
			return n - 1
		}
		fmt.Printf("Please enter a number between 1 and %d, or 'n'.\n", len(emails))
	}
}

// alreadyRepliedGate warns when the owner already replied in the
// selected thread and asks whether to draft another reply anyway.
func (s *session) alreadyRepliedGate(ctx context.Context, selected *emailResult) (bool, error) {
	if selected.ThreadID == "" {
		return true, nil
	}

	selfEmail, err := s.gm.Profile(ctx)
	if err != nil {
		return false, fmt.Errorf("get profile failed: %w", err)
	}
	msgs, err := s.gm.Thread(ctx, selected.ThreadID)
	if err != nil {
		return false, fmt.Errorf("get thread failed: %w", err)
	}

	state := mailbox.Classify(msgs, selfEmail)
	if !state.AlreadyReplied {
		return true, nil
	}

	fmt.Println("\nAgent: You have already replied to this thread.")
	fmt.Printf("   Your last reply was: \"%s\"\n\n", state.LastReplySnippet)

	return s.askYesNo("Do you still want to draft another reply? (y=yes / n=no): "), nil
}

// draftReply reads the selected email and generates a draft. Validator
// errors are fed back to the agent as a correction request before the
// user is asked to approve.
func (s *session) draftReply(ctx context.Context, conv *agent.Conversation, selected *emailResult) error {
	fmt.Printf("\nAgent: Got it! Let me draft a reply to '%s'...\n", selected.Subject)

	conv.AddUser(fmt.Sprintf("Read and draft a reply for email ID: %s", selected.ID))
	response, err := s.ag.Advance(ctx, conv)
	if err != nil {
		return err
	}
	fmt.Printf("\nAgent: %s\n\n", response)

	result := validate.Draft(extractDraft(response))
	if !result.HasIssues() {
		return nil
	}

	fmt.Println(strings.Repeat("-", 50))
	fmt.Println(result.Summary())
	fmt.Println(strings.Repeat("-", 50))

	if len(result.Errors) > 0 {
		fmt.Println("\nAgent: Let me fix those issues automatically...")
		conv.AddUser(fmt.Sprintf("Fix these issues: %s", strings.Join(result.Errors, ", ")))
		response, err = s.ag.Advance(ctx, conv)
		if err != nil {
			return err
		}
		fmt.Printf("\nAgent: %s\n\n", response)
	}

	return nil
}

// confirmAndSend loops until the user approves, rejects or modifies
// the draft. Returns whether the user wants to handle another email.
func (s *session) confirmAndSend(ctx context.Context, conv *agent.Conversation) (bool, error) {
	for {
		switch s.askChoice("Your response (y=yes / n=no / m=modify): ") {
		case "y", "yes", "approve", "send":
			conv.AddUser("Yes, please send it.")
			response, err := s.ag.Advance(ctx, conv)
			if err != nil {
				return false, err
			}
			fmt.Printf("\nAgent: %s\n", response)
			return s.askYesNo("\nWould you like to respond to another email? (y=yes / n=no): "), nil

		case "n", "no", "reject", "cancel":
			fmt.Println("\nAgent: Reply cancelled.")
			return s.askYesNo("\nWould you like to respond to another email? (y=yes / n=no): "), nil

		case "m", "modify":
			modification := s.ask("How would you like to modify the reply? ")
			if modification == "" {
				fmt.Println("No modification provided.")
				continue
			}
			conv.AddUser(fmt.Sprintf("Please modify the draft: %s", modification))
			response, err := s.ag.Advance(ctx, conv)
			if err != nil {
				return false, err
			}
			fmt.Printf("\nAgent: %s\n\n", response)

			result := validate.Draft(extractDraft(response))
			if result.HasIssues() {
				fmt.Println(strings.Repeat("-", 50))
				fmt.Println(result.Summary())
				fmt.Println(strings.Repeat("-", 50) + "\n")
			}

		default:
			fmt.Println("Please enter y=yes, n=no, or m=modify.")
		}
	}
}

// extractDraft pulls the draft text from between the --- markers, or
// falls back to the whole response.
func extractDraft(response string) string {
	parts := strings.Split(response, "---")
	if len(parts) >= 3 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(response)
}

// parseEmailResults turns the agent's fixed-format listing back into
// structured results.
func parseEmailResults(response string) []emailResult {
	var emails []emailResult

	for _, block := range strings.Split(strings.TrimSpace(response), "\n\n") {
		if !strings.Contains(block, "From:") || !strings.Contains(block, "Subject:") {
			continue
		}

		var email emailResult
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "ID:"):
				email.ID = strings.TrimSpace(strings.TrimPrefix(line, "ID:"))
			case strings.HasPrefix(line, "Thread-ID:"):
				email.ThreadID = strings.TrimSpace(strings.TrimPrefix(line, "Thread-ID:"))
			case strings.HasPrefix(line, "From:"):
				email.From = strings.TrimSpace(strings.TrimPrefix(line, "From:"))
			case strings.HasPrefix(line, "Subject:"):
				email.Subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			case strings.HasPrefix(line, "Preview:"):
				email.Preview = strings.TrimSpace(strings.TrimPrefix(line, "Preview:"))
			case strings.HasPrefix(line, "[NOTE:"):
				email.Note = strings.TrimSpace(line)
			}
		}

		if email != (emailResult{}) {
			emails = append(emails, email)
		}
	}

	return emails
}

func printEmail(indent string, email emailResult) {
	from := email.From
	if from == "" {
		from = "Unknown"
	}
	subject := email.Subject
	if subject == "" {
		subject = "No subject"
	}

	fmt.Printf("%sFrom:    %s\n", indent, from)
	fmt.Printf("%sSubject: %s\n", indent, subject)
	fmt.Printf("%sPreview: %s\n", indent, email.Preview)
	if email.Note != "" {
		fmt.Printf("%s%s\n", indent, email.Note)
	}
}

func (s *session) ask(label string) string {
	fmt.Print(label)
	line, err := s.in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (s *session) askChoice(label string) string {
	return strings.ToLower(s.ask(label))
}

func (s *session) askYesNo(label string) bool {
	answer := s.askChoice(label)
	return answer == "y" || answer == "yes"
}

// ensureToken refreshes an expired cached token, or opens the browser
// consent flow when none exists, waiting for the callback handler to
// receive one.
func ensureToken(ctx context.Context, config *oauth2.Config, tok *auth.Token) error {
	if t, err := tok.OAuthToken(); err == nil {
		if t.Valid() {
			return nil
		}
		if err := tok.Refresh(ctx); err == nil {
			return nil
		}
		log.Println("cached token could not be refreshed, re-authorizing")
	} else if !errors.Is(err, auth.ErrTokenNotSet) {
		return err
	}

	openBrowser(config.RedirectURL)
	fmt.Println("Waiting for mailbox authorization in the browser...")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := tok.OAuthToken(); err == nil {
				return nil
			}
		}
	}
}

func serveOAuth(ln net.Listener, tok *auth.Token) func() {
	mux := http.NewServeMux()
	mux.Handle("/oauth", auth.NewHTTPHandler(tok))

	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Println(fmt.Errorf("srv.Serve failed: %w", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Println(fmt.Errorf("srv.Shutdown failed: %w", err))
		}
	}
}

func mustListen(httpAddr *string) net.Listener {
	if httpAddr == nil || *httpAddr == "" {
		panic("-http-addr must be provided")
	}

	ln, err := net.Listen("tcp", *httpAddr)
	if err != nil {
		panic(fmt.Errorf("net.Listen failed: %w", err))
	}

	return ln
}

func mustCreateOauthCfg(lnAddr string, envFileParam, oauthURLParam *string) *oauth2.Config {
	if envFileParam != nil && *envFileParam != "" {
		if err := godotenv.Load(*envFileParam); err != nil {
			panic(fmt.Errorf("godotenv.Load failed: %w", err))
		}
	}

	oauthClientID := mustEnv("OAUTH_GOOGLE_CLIENT_ID")
	oauthClientSec := mustEnv("OAUTH_GOOGLE_CLIENT_SECRET")

	oauthURL := fmt.Sprintf("http://%s/oauth", lnAddr)
	if oauthURLParam != nil && *oauthURLParam != "" {
		oauthURL = *oauthURLParam
	}

	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSec,
		RedirectURL:  oauthURL,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}
}

func mustEnv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		panic(fmt.Sprintf("Env variable %s must be set", name))
	}
	return v
}

func openBrowser(url string) {
	url = fmt.Sprintf("%s?redirect=1", url)
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		log.Printf("Could not open browser automatically: %v; please copy and open link in the browser: %s\n", err, url)
	}
}
