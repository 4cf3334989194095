package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-chess-server/internal/lobbyclient"
	"github.com/park285/Cheese-chess-server/internal/wsclient"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// chess-check logs in, lists games and observes one game for a short window.
func main() {
	baseURL := strings.TrimSpace(os.Getenv("CHESS_API_URL"))
	wsURL := strings.TrimSpace(os.Getenv("CHESS_WS_URL"))
	username := os.Getenv("CHESS_USER")
	password := os.Getenv("CHESS_PASSWORD")
	gameID := strings.TrimSpace(os.Getenv("CHESS_GAME_ID"))

	if baseURL == "" {
		log.Fatal("CHESS_API_URL is required")
	}
	if username == "" || password == "" {
		log.Fatal("CHESS_USER and CHESS_PASSWORD are required")
	}

	client := lobbyclient.New(baseURL, lobbyclient.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.Login(ctx, username, password); err != nil {
		log.Fatalf("login error: %v", err)
	}
	games, err := client.ListGames(ctx)
	if err != nil {
		log.Fatalf("list games error: %v", err)
	}
	for _, g := range games {
		fmt.Printf("game %s %q white=%s black=%s over=%v\n", g.GameID, g.GameName, g.WhiteUsername, g.BlackUsername, g.GameOver)
	}

	if wsURL == "" {
		log.Println("CHESS_WS_URL not set; skipping websocket check")
		return
	}
	if gameID == "" && len(games) > 0 {
		gameID = games[0].GameID
	}
	if gameID == "" {
		log.Println("no game to observe")
		return
	}

	ws := wsclient.New(wsURL, wsclient.WithReconnect(3, time.Second))
	ws.OnStateChange(func(state wsclient.State) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *chessdto.ServerMessage) {
		switch msg.ServerMessageType {
		case chessdto.MessageLoadGame:
			fmt.Printf("LOAD_GAME turn=%s over=%v last=%s\n%s\n", msg.Game.TeamTurn, msg.Game.GameOver, msg.Game.LastMove, strings.Join(msg.Game.Board[:], "\n"))
		case chessdto.MessageError:
			fmt.Printf("ERROR %s (%s)\n", msg.ErrorMessage, msg.ErrorCode)
		default:
			fmt.Printf("NOTIFICATION %s\n", msg.Message)
		}
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	if err := ws.Send(cctx, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: client.Token(), GameID: gameID}); err != nil {
		log.Printf("WS send error: %v", err)
	}

	t := time.NewTimer(10 * time.Second)
	<-t.C

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	_ = ws.Close(closeCtx)
}
