// Command chatcli is an interactive harness for exercising configured
// providers without the server or a database. It loads the same
// providers file the server uses, binds a gateway per role, and streams
// replies to the terminal. Useful for verifying keys, models, and role
// bindings before deploying.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/domain/models/chat"
	"inkwell/internal/provider"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

func main() {
	providersPath := flag.String("providers", "providers.yaml", "path to the providers file")
	roleName := flag.String("role", string(config.RoleChat), "role to chat with (WRITING|EDITING|CHAT)")
	system := flag.String("system", "", "system prompt for the session")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	caps, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("load capability tables: %v", err)
	}
	providers, err := config.LoadProviders(*providersPath)
	if err != nil {
		log.Fatalf("load providers: %v", err)
	}
	gateways, err := provider.NewRegistry(providers, caps, logger)
	if err != nil {
		log.Fatalf("build gateways: %v", err)
	}

	cli := &cli{
		gateways: gateways,
		system:   *system,
		scanner:  bufio.NewScanner(os.Stdin),
	}
	if err := cli.setRole(*roleName); err != nil {
		log.Fatal(err)
	}
	cli.run()
}

type cli struct {
	gateways *provider.Registry
	system   string
	scanner  *bufio.Scanner

	role    config.Role
	session provider.Session
}

func (c *cli) setRole(name string) error {
	role := config.Role(strings.ToUpper(strings.TrimSpace(name)))
	switch role {
	case config.RoleWriting, config.RoleEditing, config.RoleChat:
	default:
		return fmt.Errorf("unknown role %q (want WRITING, EDITING, or CHAT)", name)
	}
	c.role = role
	c.session = nil
	return nil
}

// gateway returns the bound gateway, opening a fresh session on first
// use after a role switch or /reset. Tools stay disabled: this harness
// has no executor to run them.
func (c *cli) gateway() (provider.Gateway, provider.Session) {
	gw := c.gateways.ForRole(c.role)
	if c.session == nil {
		c.session = gw.NewSession(provider.SessionRequest{
			System:  c.system,
			Options: provider.Options{DisableTools: true},
		})
	}
	return gw, c.session
}

func (c *cli) run() {
	gw, _ := c.gateway()
	fmt.Printf("%s=== inkwell chat harness ===%s\n", colorCyan, colorReset)
	fmt.Printf("role %s%s%s via %s/%s\n", colorGreen, c.role, colorReset, gw.Name(), gw.Model())
	fmt.Printf("%s/role <name> to switch, /reset to clear history, /quit to exit%s\n\n", colorDim, colorReset)

	for {
		fmt.Printf("%s> %s", colorGreen, colorReset)
		if !c.scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := c.command(line); done {
				return
			}
			continue
		}
		c.send(line)
	}
}

func (c *cli) command(line string) (done bool) {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		fmt.Printf("%s✓ Goodbye!%s\n", colorGreen, colorReset)
		return true
	case "/reset":
		c.session = nil
		fmt.Printf("%s✓ History cleared%s\n", colorGreen, colorReset)
	case "/role":
		if err := c.setRole(rest); err != nil {
			fmt.Printf("%s⚠ %v%s\n", colorYellow, err, colorReset)
			return false
		}
		gw, _ := c.gateway()
		fmt.Printf("%s✓ Switched to %s (%s/%s)%s\n", colorGreen, c.role, gw.Name(), gw.Model(), colorReset)
	default:
		fmt.Printf("%s⚠ Unknown command %s%s\n", colorYellow, cmd, colorReset)
	}
	return false
}

func (c *cli) send(text string) {
	_, session := c.gateway()
	input := &chat.Message{
		ID:   uuid.NewString(),
		Role: chat.RoleUser,
		Text: text,
	}

	inThinking := false
	_, err := session.Send(context.Background(), input, func(d provider.StreamDelta) {
		switch d.Kind {
		case provider.DeltaThinking:
			if !inThinking {
				fmt.Printf("%s", colorDim)
				inThinking = true
			}
			fmt.Print(d.Text)
		case provider.DeltaText:
			if inThinking {
				fmt.Printf("%s\n\n", colorReset)
				inThinking = false
			}
			fmt.Print(d.Text)
		}
	})
	if inThinking {
		fmt.Print(colorReset)
	}
	fmt.Println()

	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		if detail := provider.ErrorDetail(err); detail != "" {
			fmt.Printf("%s%s%s\n", colorDim, detail, colorReset)
		}
		// Send failed mid-conversation; the session history no longer
		// matches what the provider saw, so start over.
		c.session = nil
		return
	}
	fmt.Println()
}
