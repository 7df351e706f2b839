// cabchat - command line client for the clinic messaging backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/drheny/cab-sub000/internal/api"
	"github.com/drheny/cab-sub000/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CAB_BACKEND_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	role := models.Role(os.Getenv("CAB_USER_ROLE"))
	if !role.Valid() {
		role = models.RoleDoctor
	}
	name := os.Getenv("CAB_USER_NAME")
	if name == "" {
		name = "Docteur"
	}

	client := api.NewClient(baseURL, 15*time.Second)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "read":
		msgs, err := client.FetchMessages(ctx)
		exitOnError(err)
		for _, msg := range msgs {
			ts := msg.CreatedAt.Format("2006-01-02 15:04:05")
			flags := ""
			if msg.IsEdited {
				flags += " (edited)"
			}
			if msg.IsRead {
				flags += " ✓"
			}
			fmt.Printf("[%s] %s: %s%s\n", ts, msg.SenderName, msg.Content, flags)
		}

	case "post":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: cabchat post <message>")
			os.Exit(1)
		}
		msg, err := client.CreateMessage(ctx, api.CreateMessageRequest{
			Content:    os.Args[2],
			SenderRole: role,
			SenderName: name,
		})
		exitOnError(err)
		fmt.Printf("Posted: %s\n", msg.ID)

	case "delete":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: cabchat delete <message_id>")
			os.Exit(1)
		}
		err := client.DeleteMessage(ctx, os.Args[2], models.Identity{Role: role, Name: name})
		exitOnError(err)
		fmt.Println("Deleted")

	case "clear":
		count, err := client.ClearAll(ctx)
		exitOnError(err)
		fmt.Printf("Cleared %d messages\n", count)

	case "phone":
		list, err := client.ListPhoneMessages(ctx, api.PhoneFilter{})
		exitOnError(err)
		for _, pm := range list {
			marker := " "
			if pm.Priority == models.PriorityUrgent {
				marker = "!"
			}
			fmt.Printf("%s [%s %s] %-9s %s\n", marker, pm.CallDate, pm.CallTime, pm.Status, pm.MessageContent)
		}

	case "respond":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: cabchat respond <phone_id> <response>")
			os.Exit(1)
		}
		pm, err := client.RespondPhoneMessage(ctx, os.Args[2], api.RespondPhoneRequest{
			ResponseContent: os.Args[3],
			RespondedBy:     name,
		})
		exitOnError(err)
		printJSON(pm)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`cabchat - clinic messaging CLI

Usage: cabchat <command> [options]

Commands:
  read                      Read the conversation log
  post <message>            Post a chat message
  delete <message_id>       Delete a chat message
  clear                     Delete all chat messages
  phone                     List phone messages
  respond <id> <response>   Respond to a phone message

Environment:
  CAB_BACKEND_URL   Backend URL (default: http://localhost:8000)
  CAB_USER_ROLE     doctor or secretary (default: doctor)
  CAB_USER_NAME     Display name (default: Docteur)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
