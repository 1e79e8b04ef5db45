// Package subscriber reads the external user-profile store. The file
// is owned by the chat-command side of the system; this engine only
// ever reads it, once per cycle, so external edits take effect without
// a restart.
package subscriber

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ricirt/plexnotify/internal/domain"
)

// profile mirrors one entry of the user.yml file.
type profile struct {
	Name          string `yaml:"name"`
	Notifications *bool  `yaml:"notifications"`
	QuietHours    *struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"quiet_hours"`
}

// Directory loads subscribers from a YAML file keyed by chat ID.
type Directory struct {
	path   string
	logger *zap.Logger
}

func NewDirectory(path string, logger *zap.Logger) *Directory {
	return &Directory{path: path, logger: logger}
}

// Load reads the file fresh. A missing file means no subscribers (the
// bot simply has no users yet); a malformed file is an error because
// silently notifying nobody would mask it.
func (d *Directory) Load() ([]domain.Subscriber, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Debug("subscriber file absent", zap.String("path", d.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}

	var raw map[string]profile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.path, err)
	}

	subs := make([]domain.Subscriber, 0, len(raw))
	for chatID, p := range raw {
		sub := domain.Subscriber{
			ChatID: chatID,
			Name:   p.Name,
			// Profiles that never set the flag default to on.
			NotificationsEnabled: p.Notifications == nil || *p.Notifications,
		}
		if p.QuietHours != nil {
			w, err := domain.ParseQuietWindow(p.QuietHours.Start, p.QuietHours.End)
			if err != nil {
				// A typo in one user's window must not mute them;
				// treat it as no window and flag it.
				d.logger.Warn("ignoring malformed quiet hours",
					zap.String("chat_id", chatID), zap.Error(err))
			} else {
				sub.QuietHours = w
			}
		}
		subs = append(subs, sub)
	}

	// Map iteration order is random; keep dispatch order stable.
	sort.Slice(subs, func(i, j int) bool { return subs[i].ChatID < subs[j].ChatID })
	return subs, nil
}
