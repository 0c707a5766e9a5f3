package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopping-assistant/config"
	"shopping-assistant/internal/chatclient"
	"shopping-assistant/internal/util"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Provider string        `help:"LLM provider (OpenAI, Groq, Google)." default:"OpenAI"`
	Model    string        `help:"Model name (defaults to the first model of the provider)."`
	Mode     string        `help:"Conversation mode: chat or rag." enum:"chat,rag" default:"chat"`
	APIURL   string        `name:"api-url" help:"Base URL of the shopping assistant API (defaults to API_URL)."`
	Timeout  time.Duration `help:"Request timeout (defaults to CHAT_TIMEOUT_SECONDS)."`
}

func (c *CLI) Run(cfg *config.Config) error {
	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = cfg.Chat.APIURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = cfg.Chat.Timeout
	}

	session, err := chatclient.NewSession(chatclient.NewClient(apiURL, timeout), c.Provider, c.Model, c.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("[%s / %s, %s mode] type /help for commands\n", session.Provider(), session.Model(), session.Mode())
	fmt.Printf("assistant> %s\n", chatclient.Greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		output, quit := session.Handle(ctx, scanner.Text())
		if output != "" {
			fmt.Printf("assistant> %s\n", output)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger("production", "chatbot"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("chatbot"),
		kong.Description("Terminal chat front end for the shopping assistant API"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(cfg))
}
