package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/phonecontact/internal/api"
	"github.com/matheus3301/phonecontact/internal/device"
	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/session"
	"github.com/matheus3301/phonecontact/internal/usecase"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	timeoutFlag := flag.Duration("timeout", time.Minute, "deadline for one command (watch ignores it)")
	flag.Usage = printUsage
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if len(args)-1 < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: contactsctl %s %s\n", args[0], cmd.usage)
		os.Exit(1)
	}

	socketPath := session.SocketPath(sessionName)
	c, err := api.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if args[0] != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()
	}

	out := output{json: *jsonFlag}
	if err := cmd.run(ctx, c, out, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, c *api.Client, out output, args []string) error
}

var commands = map[string]command{
	"status":        {"", "Show daemon status", 0, cmdStatus},
	"list":          {"[--sections]", "List contacts", 0, cmdList},
	"search":        {"<query>", "Search contacts by name and record the query", 1, cmdSearch},
	"get":           {"<id>", "Show one contact", 1, cmdGet},
	"create":        {"<first> <last> <phone> [image-url]", "Create a contact", 3, cmdCreate},
	"update":        {"<id> field=value...", "Update first, last, phone or image", 2, cmdUpdate},
	"delete":        {"<id>", "Delete a contact", 1, cmdDelete},
	"sync":          {"", "Pull every contact from the remote", 0, cmdSync},
	"refresh":       {"<id>", "Pull one contact from the remote", 1, cmdRefresh},
	"upload":        {"<file>", "Upload an image and print its URL", 1, cmdUpload},
	"set-image":     {"<id> <file>", "Upload an image and attach it to a contact", 2, cmdSetImage},
	"export":        {"<id>", "Write a contact to the device address book", 1, cmdExport},
	"qr":            {"<id> <out.png> [size]", "Render a contact as a QR code", 2, cmdQR},
	"history":       {"", "Show recent searches", 0, cmdHistory},
	"forget":        {"<query>", "Remove a query from the search history", 1, cmdForget},
	"clear-history": {"", "Clear the search history", 0, cmdClearHistory},
	"watch":         {"[query]", "Print the contact list on every change", 0, cmdWatch},
}

var commandOrder = []string{
	"status", "list", "search", "get", "create", "update", "delete", "sync", "refresh",
	"upload", "set-image", "export", "qr", "history", "forget", "clear-history", "watch",
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: contactsctl [--session <name>] [--json] [--timeout <d>] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Fprintf(os.Stderr, "  %-40s %s\n", strings.TrimSpace(name+" "+cmd.usage), cmd.help)
	}
}

func cmdStatus(ctx context.Context, c *api.Client, out output, _ []string) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if out.json {
		return out.encode(st)
	}
	fmt.Printf("Session:  %s\n", st.Session)
	fmt.Printf("Status:   %s (since %s)\n", st.State, st.Since.Format(time.RFC3339))
	if st.LastError != "" {
		fmt.Printf("Error:    %s\n", st.LastError)
	}
	fmt.Printf("Contacts: %d\n", st.ContactCount)
	if st.LastFullSync != nil {
		fmt.Printf("Synced:   %s (%d contacts)\n", st.LastFullSync.Format(time.RFC3339), st.LastFullSyncCount)
	} else {
		fmt.Println("Synced:   never")
	}
	fmt.Printf("Uptime:   %s\n", st.Uptime.Round(time.Second))
	return nil
}

func cmdList(ctx context.Context, c *api.Client, out output, args []string) error {
	contacts, err := c.ListContacts(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "--sections" {
		return out.sections(domain.GroupByLetter(contacts))
	}
	return out.contacts(contacts)
}

func cmdSearch(ctx context.Context, c *api.Client, out output, args []string) error {
	query := strings.Join(args, " ")
	contacts, err := c.SearchContacts(ctx, query)
	if err != nil {
		return err
	}
	if _, err := c.RecordSearch(ctx, query); err != nil {
		return err
	}
	return out.contacts(contacts)
}

func cmdGet(ctx context.Context, c *api.Client, out output, args []string) error {
	contact, err := c.GetContact(ctx, args[0])
	if err != nil {
		return err
	}
	return out.contact(contact)
}

func cmdCreate(ctx context.Context, c *api.Client, out output, args []string) error {
	in := usecase.CreateInput{FirstName: args[0], LastName: args[1], PhoneNumber: args[2]}
	if len(args) > 3 {
		in.ProfileImageURL = args[3]
	}
	contact, err := c.CreateContact(ctx, in)
	if err != nil {
		return err
	}
	return out.contact(contact)
}

func cmdUpdate(ctx context.Context, c *api.Client, out output, args []string) error {
	contact, err := c.GetContact(ctx, args[0])
	if err != nil {
		return err
	}
	for _, kv := range args[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", kv)
		}
		switch key {
		case "first":
			contact.FirstName = value
		case "last":
			contact.LastName = value
		case "phone":
			contact.PhoneNumber = value
		case "image":
			contact.ProfileImageURL = value
		default:
			return fmt.Errorf("unknown field %q (want first, last, phone or image)", key)
		}
	}
	res, err := c.UpdateContact(ctx, contact)
	if err != nil {
		return err
	}
	if !res.Remote && !out.json {
		fmt.Fprintln(os.Stderr, "warning: remote update failed, changed locally only")
	}
	return out.contact(res.Contact)
}

func cmdDelete(ctx context.Context, c *api.Client, _ output, args []string) error {
	return c.DeleteContact(ctx, args[0])
}

func cmdSync(ctx context.Context, c *api.Client, out output, _ []string) error {
	n, err := c.SyncContacts(ctx)
	if err != nil {
		return err
	}
	if out.json {
		return out.encode(map[string]int{"count": n})
	}
	fmt.Printf("Synced %d contacts.\n", n)
	return nil
}

func cmdRefresh(ctx context.Context, c *api.Client, out output, args []string) error {
	contact, err := c.RefreshContact(ctx, args[0])
	if err != nil {
		return err
	}
	return out.contact(contact)
}

func cmdUpload(ctx context.Context, c *api.Client, out output, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	url, err := c.UploadImage(ctx, data)
	if err != nil {
		return err
	}
	if out.json {
		return out.encode(map[string]string{"url": url})
	}
	fmt.Println(url)
	return nil
}

func cmdSetImage(ctx context.Context, c *api.Client, out output, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	res, err := c.SetProfileImage(ctx, args[0], data)
	if err != nil {
		return err
	}
	return out.contact(res.Contact)
}

func cmdExport(ctx context.Context, c *api.Client, out output, args []string) error {
	contact, err := c.ExportToDevice(ctx, args[0])
	if err != nil {
		return err
	}
	return out.contact(contact)
}

func cmdQR(ctx context.Context, c *api.Client, _ output, args []string) error {
	contact, err := c.GetContact(ctx, args[0])
	if err != nil {
		return err
	}
	size := device.DefaultQRSize
	if len(args) > 2 {
		size, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("size: %w", err)
		}
	}
	return device.WriteQRCode(contact, size, args[1])
}

func cmdHistory(ctx context.Context, c *api.Client, out output, _ []string) error {
	entries, err := c.RecentSearches(ctx)
	if err != nil {
		return err
	}
	if out.json {
		return out.encode(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No recent searches.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-30s %s\n", e.SearchQuery, e.SearchedAt.Format(time.DateTime))
	}
	return nil
}

func cmdForget(ctx context.Context, c *api.Client, _ output, args []string) error {
	return c.RemoveSearch(ctx, strings.Join(args, " "))
}

func cmdClearHistory(ctx context.Context, c *api.Client, _ output, _ []string) error {
	return c.ClearSearchHistory(ctx)
}

func cmdWatch(ctx context.Context, c *api.Client, out output, args []string) error {
	err := c.WatchContacts(ctx, strings.Join(args, " "), func(contacts []domain.Contact) error {
		if !out.json {
			fmt.Printf("--- %s: %d contacts\n", time.Now().Format(time.TimeOnly), len(contacts))
		}
		return out.contacts(contacts)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
