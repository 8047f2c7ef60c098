package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/tasknest/tasknest/config"
	"github.com/tasknest/tasknest/internal/data"
)

const connectProbeTimeout = 5 * time.Second

// DatabaseConfig bundles the connection settings for the backing stores.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens a pgx-backed *sql.DB and verifies the connection with a
// short ping before handing it out.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping postgres: %w", err), db.Close())
	}

	cfg.Logger.Info("connected to postgres",
		"host", cfg.DBConfig.Host,
		"port", cfg.DBConfig.Port,
		"database", cfg.DBConfig.Name)
	return db, nil
}

func postgresDSN(db config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     db.Host + ":" + strconv.Itoa(db.Port),
		Path:     "/" + db.Name,
		RawQuery: url.Values{"sslmode": []string{db.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectRedis builds a Redis client for whichever topology the config
// selects (cluster, sentinel, or a single node) and pings it once.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	client, target := redisClientFor(cfg.RedisConfig)

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis %s: %w", target, err), client.Close())
	}

	cfg.Logger.Info("connected to redis", "target", target)
	return client, nil
}

// redisClientFor returns the client plus a credential-free label for logs.
func redisClientFor(rc config.RedisConfig) (redis.UniversalClient, string) {
	switch {
	case rc.UseCluster:
		nodes := clusterNodes(rc)
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    nodes,
			Password: rc.Password,
		}), "cluster " + strings.Join(nodes, ",")
	case rc.UseSentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       rc.SentinelMasterName,
			SentinelAddrs:    rc.SentinelNodes,
			SentinelPassword: rc.SentinelPassword,
			Password:         rc.Password,
		}), "sentinel master " + rc.SentinelMasterName
	default:
		opt := directOptions(rc)
		return redis.NewClient(opt), opt.Addr
	}
}

// clusterNodes prefers the explicit node list; when it is empty the URI is
// treated as the sole seed node so a single-node config still works in
// cluster mode.
func clusterNodes(rc config.RedisConfig) []string {
	nodes := make([]string, 0, len(rc.ClusterNodes))
	for _, n := range rc.ClusterNodes {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) > 0 {
		return nodes
	}
	return []string{hostFromURI(rc.URI)}
}

func directOptions(rc config.RedisConfig) *redis.Options {
	if strings.Contains(rc.URI, "://") {
		if opt, err := redis.ParseURL(rc.URI); err == nil {
			if opt.Password == "" {
				opt.Password = rc.Password
			}
			return opt
		}
	}
	return &redis.Options{Addr: rc.URI, Password: rc.Password}
}

// hostFromURI strips an optional redis:// scheme and userinfo, leaving a
// bare host:port suitable for the cluster seed list.
func hostFromURI(uri string) string {
	addr := uri
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		addr = addr[i+1:]
	}
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[:i]
	}
	return addr
}

// RunMigrations applies any pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger.Info("applying database migrations")
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")
	return nil
}
