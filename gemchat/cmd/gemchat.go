// Command-line chat client for gemchat
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"gemchat/gemchat/config"
	"gemchat/gemchat/controllers"
	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/services/title"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/utils/color"
	"gemchat/gemchat/utils/logging"
	"gemchat/gemchat/utils/types"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)

	conversations, err := dao.Open(cfg.Store)
	if err != nil {
		fmt.Println(color.ColorError("could not open store: " + err.Error()))
		os.Exit(1)
	}
	defer conversations.Close()

	client := genai.NewClient(cfg.GenAI)
	titles := title.NewGenerator(conversations, client, cfg.GenAI.TitleModel)
	ctrl := controllers.NewChatController(conversations, client, titles, cfg.GenAI)

	ctx := context.Background()
	sess, err := ctrl.CreateSession(ctx, types.CreateSessionRequest{})
	if err != nil {
		fmt.Println(color.ColorError("could not create session: " + err.Error()))
		os.Exit(1)
	}
	logging.AppLogger.Info("cli session created", zap.String("session_id", sess.ID))

	fmt.Println(color.ColorInfo("gemchat session " + sess.ID))
	fmt.Println("Commands: /list (sessions), /history, /quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.ColorPrompt("you> "))
		if !scanner.Scan() {
			break // EOF
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			fmt.Println(color.ColorInfo("bye"))
			return
		case "/list":
			sessions, err := ctrl.ListSessions(ctx)
			if err != nil {
				fmt.Println(color.ColorError(err.Error()))
				continue
			}
			for _, s := range sessions {
				name := s.Title
				if name == "" {
					name = "(untitled)"
				}
				fmt.Printf("  %s  %s\n", s.ID, color.ColorTitle(name))
			}
			continue
		case "/history":
			msgs, err := ctrl.GetMessagesForSession(ctx, sess.ID)
			if err != nil {
				fmt.Println(color.ColorError(err.Error()))
				continue
			}
			for _, m := range msgs {
				fmt.Printf("  [%s] %s\n", m.Role, m.Content)
			}
			continue
		}

		resp, err := ctrl.SubmitTurn(ctx, types.TurnRequest{
			SessionID: sess.ID,
			Message:   line,
		})
		if err != nil {
			fmt.Println(color.ColorWarning(err.Error()))
			continue
		}
		fmt.Println(color.ColorReply(resp.Reply))
		fmt.Println()
	}
}
