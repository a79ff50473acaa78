package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	qrcode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/gigchat/internal/profile"
	"github.com/matheus3301/gigchat/internal/rpc"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	archivedFlag := flag.Bool("archived", false, "messages: read the local archive instead of the live timeline")
	limitFlag := flag.Int("limit", 0, "messages/search: maximum results")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Profile management works without a daemon.
	switch args[0] {
	case "profiles":
		cmdProfiles(name, output{json: *jsonFlag})
		return
	case "use":
		need(args, 2, "use <profile>")
		check(profile.SetDefault(args[1]))
		fmt.Printf("Default profile: %s\n", args[1])
		return
	}

	c, err := rpc.Dial(profile.SocketPath(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		ns := ""
		if len(args) > 1 {
			ns = args[1]
		}
		cmdWatch(c, ns)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := output{json: *jsonFlag}
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, out)
	case "contacts":
		cmdContacts(ctx, c, out)
	case "open":
		need(args, 2, "open <contact>")
		check(c.SelectContact(ctx, args[1]))
		fmt.Printf("Active conversation: %s\n", args[1])
	case "messages":
		contact := ""
		if len(args) > 1 {
			contact = args[1]
		}
		cmdMessages(ctx, c, out, &rpc.ListMessagesRequest{ContactID: contact, Archived: *archivedFlag, Limit: *limitFlag})
	case "send":
		need(args, 3, "send <contact> <text>")
		check(c.SelectContact(ctx, args[1]))
		res, err := c.SendText(ctx, strings.Join(args[2:], " "))
		check(err)
		out.print(res, func() { fmt.Printf("Queued as %s\n", res.TempID) })
	case "attach":
		need(args, 3, "attach <contact> <path>")
		check(c.SelectContact(ctx, args[1]))
		d, err := c.StageAttachment(ctx, &rpc.StageAttachmentRequest{Path: args[2]})
		check(err)
		res, err := c.Submit(ctx)
		check(err)
		out.print(res, func() {
			fmt.Printf("Sent %s (%s, %s) as %s\n", d.Staged.Name, d.Staged.MimeType, humanize.Bytes(uint64(d.Staged.Size)), res.TempID)
		})
	case "reply":
		need(args, 4, "reply <contact> <message-id> <text>")
		check(c.SelectContact(ctx, args[1]))
		_, err := c.SetReplyTarget(ctx, args[2])
		check(err)
		res, err := c.SendText(ctx, strings.Join(args[3:], " "))
		check(err)
		out.print(res, func() { fmt.Printf("Queued as %s\n", res.TempID) })
	case "delete":
		need(args, 3, "delete <contact> <message-id>")
		check(c.SelectContact(ctx, args[1]))
		check(c.DeleteMessage(ctx, args[2]))
		fmt.Println("Deleted.")
	case "search":
		need(args, 2, "search <query>")
		cmdSearch(ctx, c, out, &rpc.SearchRequest{Query: strings.Join(args[1:], " "), Limit: *limitFlag})
	case "card":
		cmdCard(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: gigchatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show daemon and link status")
	fmt.Fprintln(os.Stderr, "  contacts                        List contacts, most recent first")
	fmt.Fprintln(os.Stderr, "  open <contact>                  Make a conversation active")
	fmt.Fprintln(os.Stderr, "  messages [contact]              Show a conversation (--archived, --limit)")
	fmt.Fprintln(os.Stderr, "  send <contact> <text>           Send a text message")
	fmt.Fprintln(os.Stderr, "  attach <contact> <path>         Send a file or image")
	fmt.Fprintln(os.Stderr, "  reply <contact> <id> <text>     Reply quoting a message")
	fmt.Fprintln(os.Stderr, "  delete <contact> <id>           Delete one of your messages")
	fmt.Fprintln(os.Stderr, "  search <query>                  Search the archive")
	fmt.Fprintln(os.Stderr, "  card                            Print your contact QR code")
	fmt.Fprintln(os.Stderr, "  watch [namespace]               Stream daemon events (conn., chat., composer.)")
	fmt.Fprintln(os.Stderr, "  profiles                        List local profiles")
	fmt.Fprintln(os.Stderr, "  use <profile>                   Set the default profile")
}

type output struct {
	json bool
}

// print writes v as JSON in --json mode, otherwise runs text.
func (o output) print(v any, text func()) {
	if o.json {
		outputJSON(v)
		return
	}
	text()
}

func cmdProfiles(current string, out output) {
	list, err := profile.List()
	check(err)
	out.print(list, func() {
		if len(list) == 0 {
			fmt.Println("No profiles found.")
			return
		}
		for _, p := range list {
			mark, daemon := " ", "stopped"
			if p.Name == current {
				mark = "*"
			}
			if p.HasSocket {
				daemon = "socket present"
			}
			fmt.Printf("%s %-20s %s (%s)\n", mark, p.Name, p.Path, daemon)
		}
	})
}

func cmdStatus(ctx context.Context, c *rpc.Client, out output) {
	st, err := c.GetStatus(ctx)
	check(err)
	out.print(st, func() {
		uptime := durafmt.Parse(time.Duration(st.UptimeMs) * time.Millisecond).LimitFirstN(2)
		fmt.Printf("Profile:   %s\n", st.Profile)
		fmt.Printf("User:      %s\n", st.UserID)
		fmt.Printf("Endpoint:  %s\n", st.Endpoint)
		fmt.Printf("Link:      %s (connected: %v)\n", st.State, st.Connected)
		if st.StateSince != nil {
			fmt.Printf("Since:     %s\n", humanize.Time(st.StateSince.AsTime()))
		}
		fmt.Printf("Uptime:    %s\n", uptime)
		fmt.Printf("Active:    %s\n", orDash(st.Active))
		fmt.Printf("Online:    %s\n", orDash(strings.Join(st.Online, ", ")))
		fmt.Printf("Queued:    %d frames\n", st.QueuedFrames)
		fmt.Printf("Archive:   %s contacts, %s messages\n", humanize.Comma(st.ContactCount), humanize.Comma(st.MessageCount))
	})
}

func cmdContacts(ctx context.Context, c *rpc.Client, out output) {
	list, err := c.ListContacts(ctx)
	check(err)
	out.print(list, func() {
		if len(list.Contacts) == 0 {
			fmt.Println("No contacts.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tSTATE\tUNREAD\tLAST")
		for _, ct := range list.Contacts {
			mark := ""
			if ct.Active {
				mark = "*"
			}
			state := "offline"
			switch {
			case ct.IsTyping:
				state = "typing"
			case ct.IsOnline:
				state = "online"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", mark, ct.ID, ct.DisplayName, state, ct.UnreadCount, ago(ct.LastMessageAt))
		}
		_ = w.Flush()
	})
}

func cmdMessages(ctx context.Context, c *rpc.Client, out output, req *rpc.ListMessagesRequest) {
	list, err := c.ListMessages(ctx, req)
	check(err)
	out.print(list, func() {
		if len(list.Messages) == 0 {
			fmt.Println("No messages.")
			return
		}
		for _, m := range list.Messages {
			printMessage(os.Stdout, m)
		}
	})
}

func printMessage(w io.Writer, m *rpc.Message) {
	who := m.SenderID
	if m.FromMe {
		who = "you"
	}
	body := m.Text
	if m.Kind != "text" {
		body = fmt.Sprintf("[%s] %s (%s)", m.Kind, m.AttachmentName, humanize.Bytes(uint64(m.AttachmentSize)))
	}
	if m.ReplyTo != nil {
		body = fmt.Sprintf("> %s\n    %s", m.ReplyTo.Preview, body)
	}
	status := ""
	if m.FromMe {
		status = " [" + m.Status + "]"
	}
	fmt.Fprintf(w, "%s  %-12s %s%s\n    %s\n", ago(m.Timestamp), who, m.ID, status, body)
}

func cmdSearch(ctx context.Context, c *rpc.Client, out output, req *rpc.SearchRequest) {
	res, err := c.SearchMessages(ctx, req)
	check(err)
	out.print(res, func() {
		if len(res.Results) == 0 {
			fmt.Println("No matches.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTACT\tMESSAGE\tWHEN\tSNIPPET")
		for _, r := range res.Results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Message.ContactID, r.Message.ID, ago(r.Message.Timestamp), r.Snippet)
		}
		_ = w.Flush()
	})
}

func cmdCard(ctx context.Context, c *rpc.Client) {
	st, err := c.GetStatus(ctx)
	check(err)
	if st.UserID == "" {
		fail(errors.New("profile has no user id"))
	}
	uri := "gigchat://user/" + st.UserID
	qr, err := qrcode.New(uri, qrcode.Low)
	check(err)
	fmt.Print(qr.ToSmallString(false))
	fmt.Println(uri)
}

func cmdWatch(c *rpc.Client, namespace string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stream, err := c.WatchEvents(ctx, namespace)
	check(err)
	for {
		evt, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			fail(err)
		}
		outputJSON(evt)
	}
}

func ago(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return "-"
	}
	return humanize.Time(ts.AsTime())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: gigchatctl "+usage)
		os.Exit(1)
	}
}

func check(err error) {
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
