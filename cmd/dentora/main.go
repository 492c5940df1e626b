package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/dentora/dentora/internal/appointment"
	"github.com/dentora/dentora/internal/audit"
	"github.com/dentora/dentora/internal/authorization"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	"github.com/dentora/dentora/internal/invoice"
	"github.com/dentora/dentora/internal/migration"
	"github.com/dentora/dentora/internal/observability"
	"github.com/dentora/dentora/internal/patient"
	"github.com/dentora/dentora/internal/payment"
	"github.com/dentora/dentora/internal/product"
	"github.com/dentora/dentora/internal/ratelimit"
	"github.com/dentora/dentora/internal/scheduler"
	"github.com/dentora/dentora/internal/sequence"
	"github.com/dentora/dentora/internal/server"
	"github.com/dentora/dentora/internal/treatmentplan"
	"github.com/dentora/dentora/internal/user"
	"github.com/dentora/dentora/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Cross-cutting services
		audit.Module,
		authorization.Module,
		sequence.Module,
		ratelimit.Module,

		// Practice domains
		user.Module,
		patient.Module,
		product.Module,
		appointment.Module,
		invoice.Module,
		payment.Module,
		treatmentplan.Module,

		// Background jobs and HTTP surface
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
