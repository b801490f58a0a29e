package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Memetic OS server URL")
	user := flag.String("user", "cli-user", "User name for chat")
	flag.Parse()

	fmt.Println("Memetic OS CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /state /stats /goal /evolve /meme, plus client-side !status")
	fmt.Println("---")

	fetchState(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nВы: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("До встречи!")
			return
		}
		if input == "!status" {
			fetchState(*server)
			continue
		}

		sendMessage(*server, *user, input)
	}
}

func fetchState(server string) {
	resp, err := http.Get(server + "/api/agent/state")
	if err != nil {
		printError("Failed to fetch agent state: %v", err)
		return
	}
	defer resp.Body.Close()

	var state struct {
		Emotion     string  `json:"emotion"`
		CurrentGoal string  `json:"current_goal"`
		Energy      int     `json:"energy"`
		Reputation  float64 `json:"reputation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		printError("Failed to parse agent state: %v", err)
		return
	}
	fmt.Printf("Агент: эмоция=%s цель=%q энергия=%d репутация=%.2f\n",
		state.Emotion, state.CurrentGoal, state.Energy, state.Reputation)
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"content":   content,
	})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var msg struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	fmt.Printf("\033[36mAI:\033[0m %s\n", msg.Content)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
