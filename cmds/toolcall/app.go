package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mcpclient "mcp-toolserver/mcp-client"
	"mcp-toolserver/service"
	"mcp-toolserver/shared"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "toolcall",
		Usage: "List or call the tools of a running MCP server over SSE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:3000/sse",
				Usage:   "SSE endpoint of the server",
				Sources: cli.EnvVars("MCP_URL"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "bearer token",
				Sources: cli.EnvVars("API_KEY"),
			},
			&cli.StringFlag{
				Name:  "tool",
				Usage: "tool to call; without it the tools are listed",
			},
			&cli.StringFlag{
				Name:  "args",
				Value: "{}",
				Usage: "tool arguments as a JSON object",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("toolcall failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := shared.InitLogger(cmd.String("log-level"), shared.LogFormatConsole); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	mgr := mcpclient.NewClientMgr()
	defer mgr.Close()

	name, err := mgr.Connect(ctx, cmd.String("url"), cmd.String("api-key"))
	if err != nil {
		return err
	}
	endpoints, err := mgr.LoadAllTools(ctx)
	if err != nil {
		return err
	}

	tool := cmd.String("tool")
	if tool == "" {
		fmt.Printf("%s offers %d tools\n", name, len(endpoints))
		for _, endpoint := range endpoints {
			fmt.Printf("  %-18s %s\n", endpoint.Name, endpoint.Def.Description)
		}
		return nil
	}

	td := service.NewToolDispatcher()
	if err := td.RegisterToolEndpoint(endpoints...); err != nil {
		return err
	}
	args := json.RawMessage(cmd.String("args"))
	if !json.Valid(args) {
		return fmt.Errorf("--args is not valid JSON: %s", args)
	}
	res, err := td.Run(ctx, tool, args)
	if err != nil {
		return err
	}
	fmt.Println(res)
	return nil
}
