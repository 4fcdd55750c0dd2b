package di

import (
	"fmt"

	"github.com/aristath/aurum/internal/analysis"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/updatelog"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the shared connection
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container has no database")
	}
	conn := container.DB.Conn()

	container.MarketRepo = market.NewRepository(conn)
	container.NewsRepo = news.NewRepository(conn)
	container.FactorRepo = analysis.NewFactorRepository(conn)
	container.InstitutionRepo = analysis.NewInstitutionRepository(conn)
	container.SnapshotRepo = analysis.NewSnapshotRepository(conn)
	container.UpdateLog = updatelog.NewRepository(conn)

	log.Debug().Msg("Repositories initialized")
	return nil
}
