package main

import (
	"context"
	"errors"
	"time"

	"mychat/backend/internal/auth"
	"mychat/backend/internal/config"
	"mychat/backend/internal/directory"
	"mychat/backend/internal/errs"
	"mychat/backend/internal/messagelog"
	"mychat/backend/internal/registry"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const demoPassword = "d3664645D"

type demoUser struct {
	username string
	profile  directory.Profile
}

var demoUsers = []demoUser{
	{username: "aleksgrekov"},
	{username: "innarodinskaia", profile: directory.Profile{FirstName: lo.ToPtr("Inna"), LastName: lo.ToPtr("Grekova")}},
	{username: "chegachega", profile: directory.Profile{FirstName: lo.ToPtr("Денис")}},
	{username: "mckensy", profile: directory.Profile{FirstName: lo.ToPtr("Саша")}},
}

// seedDemo creates a few demo accounts with two chats. Running it again against a
// populated database leaves the existing data alone.
func seedDemo(ctx context.Context, cfg *config.Config, users *directory.Service, chats *registry.Service,
	messages *messagelog.Service, log *zap.Logger) error {
	hash, err := auth.HashPassword(demoPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}

	created := 0
	for _, u := range demoUsers {
		_, err := users.Register(ctx, u.username, hash, u.profile)
		switch {
		case err == nil:
			created++
		case errors.Is(err, errs.ErrAlreadyExists):
		default:
			return err
		}
	}
	if created == 0 {
		log.Info("Demo data already present")
		return nil
	}

	first, err := chats.CreateChat(ctx, "aleksgrekov", "innarodinskaia")
	if err != nil && !errors.Is(err, errs.ErrDuplicateChat) {
		return err
	}
	if _, err := chats.CreateChat(ctx, "aleksgrekov", "chegachega"); err != nil && !errors.Is(err, errs.ErrDuplicateChat) {
		return err
	}
	if first != 0 {
		now := time.Now()
		if _, err := messages.Append(ctx, first, "aleksgrekov", "Привет!", now); err != nil {
			return err
		}
		if _, err := messages.Append(ctx, first, "innarodinskaia", "Привет!", now.Add(time.Second)); err != nil {
			return err
		}
	}

	log.Info("Demo data seeded", zap.Int("users", created))
	return nil
}
