package voice

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// ErrUnknownSound is returned for a sound name with no matching clip.
var ErrUnknownSound = errors.New("unknown sound")

// ShuffleSound is played when a blackjack shoe is rebuilt.
const ShuffleSound = "shuffle"

// Manager tracks per-guild Player instances and the sound library.
type Manager struct {
	players map[string]*Player
	session *discordgo.Session
	dir     string
	mu      sync.Mutex
}

// NewManager creates a manager serving clips from dir.
func NewManager(session *discordgo.Session, dir string) *Manager {
	return &Manager{
		players: make(map[string]*Player),
		session: session,
		dir:     dir,
	}
}

// Sounds lists the clip names available in the sound directory.
func (m *Manager) Sounds() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.ogg"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, path := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".ogg"))
	}
	sort.Strings(names)
	return names, nil
}

// SoundPath resolves a clip name to its file. Names cannot escape the
// sound directory.
func (m *Manager) SoundPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrUnknownSound
	}
	path := filepath.Join(m.dir, name+".ogg")
	if _, err := os.Stat(path); err != nil {
		return "", ErrUnknownSound
	}
	return path, nil
}

// Play queues a clip for the voice channel.
func (m *Manager) Play(guildID, channelID, name string) error {
	path, err := m.SoundPath(name)
	if err != nil {
		return err
	}
	m.GetOrCreatePlayer(guildID).Enqueue(channelID, path)
	return nil
}

// PlayForUser queues a clip in whichever voice channel the user is in. It
// is a no-op when the user is not connected.
func (m *Manager) PlayForUser(guildID, userID, name string) error {
	vs, err := m.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return nil
	}
	return m.Play(guildID, vs.ChannelID, name)
}

// GetOrCreatePlayer returns the existing player or creates a new one.
func (m *Manager) GetOrCreatePlayer(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.players[guildID]; ok {
		return p
	}

	p := NewPlayer(m.session, guildID)
	m.players[guildID] = p
	log.Debugf("[VOICE] Created new player for Guild %s", guildID)
	return p
}

// Shutdown stops all players.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.players = make(map[string]*Player)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			p.Stop()
		}(p)
	}
	wg.Wait()
}
