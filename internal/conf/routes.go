package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/logger"
)

// RoutesConfig is the YAML routes file
type RoutesConfig struct {
	Routes []RouteEntry `yaml:"routes"`
}

// RouteEntry maps one chat to its routing hints
type RouteEntry struct {
	ChatID int64  `yaml:"chat_id"`
	Master string `yaml:"master"`
	Room   string `yaml:"room"`
}

// LoadRoutesConfig loads chat routes from a YAML file.
// With an empty path a few conventional locations are tried; finding
// none is not an error.
func LoadRoutesConfig(configPath string) (map[int64]domain.Route, error) {
	log := logger.Named("config")

	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/routes.yaml",
			"/etc/signal-bridge/routes.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "routes.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
		log.Debug().Msg("no routes.yaml found")
		return map[int64]domain.Route{}, nil
	}

	log.Info().Str("path", loadedPath).Msg("loading chat routes")

	var config RoutesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	routes := make(map[int64]domain.Route, len(config.Routes))
	for i, r := range config.Routes {
		if r.ChatID == 0 || strings.TrimSpace(r.Master) == "" {
			return nil, fmt.Errorf("route #%d: chat_id and master are required", i+1)
		}
		routes[r.ChatID] = domain.Route{
			MasterHint: strings.TrimSpace(r.Master),
			RoomHint:   strings.TrimSpace(r.Room),
		}
	}
	return routes, nil
}

// ParseChatRoutes parses "chat_id=master[:room]" pairs separated by commas,
// e.g. "-1003349817033=master_2:room2,-1001467736193=master_3"
func ParseChatRoutes(s string) (map[int64]domain.Route, error) {
	routes := make(map[int64]domain.Route)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idStr, hints, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("route %q: missing '='", part)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("route %q: invalid chat id", part)
		}

		master, room, _ := strings.Cut(hints, ":")
		master = strings.TrimSpace(master)
		if master == "" {
			return nil, fmt.Errorf("route %q: missing master", part)
		}
		routes[id] = domain.Route{MasterHint: master, RoomHint: strings.TrimSpace(room)}
	}
	return routes, nil
}
