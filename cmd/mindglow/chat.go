package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/bus"
	"github.com/mindglow/mindglow/pkg/persona"
)

func runChat(debug bool, personaName, message, sessionKey string) error {
	cfg, err := loadConfig(debug)
	if err != nil {
		return err
	}
	p, err := persona.Parse(personaName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	loop, err := agent.NewAgentLoop(bus.NewMessageBus(), st.pipeline, agent.LoopOptions{
		Persona:      p,
		MaxHistory:   cfg.Memory.MaxContextMessages,
		MaxSummaries: cfg.Memory.MaxPastSummaries,
	})
	if err != nil {
		return err
	}

	if strings.TrimSpace(message) != "" {
		turn, err := loop.ProcessDirect(ctx, message, sessionKey)
		printTurn(os.Stdout, turn)
		return err
	}

	fmt.Printf("%s %s companion (type /help for commands, Ctrl+C to exit)\n\n", appName, p.Label())
	interactiveMode(ctx, loop, sessionKey)
	return nil
}

func interactiveMode(ctx context.Context, loop *agent.AgentLoop, sessionKey string) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".mindglow_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, loop, sessionKey)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleLine(ctx, loop, sessionKey, line) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, loop *agent.AgentLoop, sessionKey string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("you: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleLine(ctx, loop, sessionKey, line) {
			return
		}
	}
}

// handleLine returns false when the user asked to leave.
func handleLine(ctx context.Context, loop *agent.AgentLoop, sessionKey, line string) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return true
	case "exit", "quit":
		fmt.Println("Goodbye!")
		return false
	}
	turn, err := loop.ProcessDirect(ctx, input, sessionKey)
	printTurn(os.Stdout, turn)
	if err != nil {
		fmt.Printf("(error: %v)\n", err)
	}
	fmt.Println()
	return true
}

func printTurn(w io.Writer, turn agent.Turn) {
	for _, out := range turn.Replies {
		switch out.Kind {
		case bus.KindResources:
			fmt.Fprintf(w, "\n[support resources]\n%s\n", out.Content)
		case bus.KindNotice:
			fmt.Fprintf(w, "\n%s\n", out.Content)
		default:
			fmt.Fprintf(w, "\n%s: %s\n", appName, out.Content)
		}
	}
	if turn.Result == nil {
		return
	}
	resp := turn.Result.Response
	flags := []string{"lang=" + resp.DetectedLanguage}
	if resp.Filtered {
		flags = append(flags, "filtered")
	}
	if resp.CrisisDetected {
		flags = append(flags, "crisis")
	}
	fmt.Fprintf(w, "  (%s)\n", strings.Join(flags, ", "))
}
