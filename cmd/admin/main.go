package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"mychat/backend/internal/config"
	"mychat/backend/internal/directory"
	"mychat/backend/internal/messagelog"
	"mychat/backend/internal/models"
	"mychat/backend/internal/registry"
	"mychat/backend/internal/storage"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

const usage = `Usage: admin <command> [args]

Commands:
  users                                   list every account
  chats <username>                        list the user's chats
  history <chat_id>                       print a chat's messages
  create-chat <username> <username>       open a chat between two users
  notice <username> <telegram> on|off     set the notification preference`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	dsn := cfg.DatabaseDSN
	if dsn == "" {
		dsn = storage.PostgresDSN(cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUser,
			cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	}
	db, err := storage.NewGormDB(dsn, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	store := storage.NewStorageService(db)
	nop := zap.NewNop()
	users := directory.NewService(store, 0, nop)
	admin := &adminCLI{
		users:    users,
		chats:    registry.NewService(store, users, nop),
		messages: messagelog.NewService(store, users, nop),
		out:      os.Stdout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := admin.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

type adminCLI struct {
	users    *directory.Service
	chats    *registry.Service
	messages *messagelog.Service
	out      io.Writer
}

func (a *adminCLI) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "users":
		return a.listUsers(ctx)
	case "chats":
		if len(args) != 1 {
			return fmt.Errorf("usage: admin chats <username>")
		}
		return a.listChats(ctx, args[0])
	case "history":
		if len(args) != 1 {
			return fmt.Errorf("usage: admin history <chat_id>")
		}
		chatID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		return a.history(ctx, uint(chatID))
	case "create-chat":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin create-chat <username> <username>")
		}
		chatID, err := a.chats.CreateChat(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Chat %d created.\n", chatID)
		return nil
	case "notice":
		if len(args) != 3 || (args[2] != "on" && args[2] != "off") {
			return fmt.Errorf("usage: admin notice <username> <telegram> on|off")
		}
		telegram := args[1]
		if err := a.users.SetNotificationPreference(ctx, args[0], &telegram, args[2] == "on"); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Notifications for %s are %s.\n", args[0], args[2])
		return nil
	default:
		return fmt.Errorf("unknown command\n\n%s", usage)
	}
}

func (a *adminCLI) listUsers(ctx context.Context) error {
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	table := a.newTable("ID", "Username", "Name", "Telegram", "Notice", "Linked")
	for _, u := range users {
		table.Append([]string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Username,
			u.DisplayName(),
			deref(u.Telegram),
			strconv.FormatBool(u.Notice),
			strconv.FormatBool(u.TelegramChatID != nil),
		})
	}
	table.Render()
	return nil
}

func (a *adminCLI) listChats(ctx context.Context, username string) error {
	chats, err := a.chats.ListChatsForUsername(ctx, username)
	if err != nil {
		return err
	}
	table := a.newTable("Chat", "With", "Name")
	for _, c := range chats {
		table.Append([]string{
			strconv.FormatUint(uint64(c.ChatID), 10),
			c.OtherMember.Username,
			viewName(c.OtherMember),
		})
	}
	table.Render()
	return nil
}

func (a *adminCLI) history(ctx context.Context, chatID uint) error {
	history, err := a.messages.ListByChat(ctx, chatID)
	if err != nil {
		return err
	}
	table := a.newTable("Time", "From", "Message")
	for _, m := range history {
		table.Append([]string{
			m.Timestamp.Local().Format("2006-01-02 15:04:05"),
			m.Sender.Username,
			m.Body,
		})
	}
	table.Render()
	return nil
}

func (a *adminCLI) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(a.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func viewName(v models.UserView) string {
	if v.FirstName != nil && v.LastName != nil {
		return *v.FirstName + " " + *v.LastName
	}
	return deref(v.FirstName)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
