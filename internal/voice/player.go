package voice

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

type clip struct {
	channelID string
	path      string
}

// Player plays queued sound clips into one guild's voice channels.
type Player struct {
	GuildID string

	queue   []clip
	playing bool
	stop    chan struct{}
	done    chan struct{}

	session *discordgo.Session
	mu      sync.Mutex
}

// NewPlayer creates a new Player for a guild.
func NewPlayer(session *discordgo.Session, guildID string) *Player {
	return &Player{
		GuildID: guildID,
		stop:    make(chan struct{}),
		session: session,
	}
}

// Enqueue adds a clip and starts the playback loop if it is idle.
func (p *Player) Enqueue(channelID, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, clip{channelID: channelID, path: path})
	log.Debugf("[VOICE] Enqueued %s for guild %s", path, p.GuildID)
	if !p.playing {
		p.playing = true
		p.done = make(chan struct{})
		go p.playLoop()
	}
}

func (p *Player) dequeue() (clip, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.playing = false
		return clip{}, false
	}
	c := p.queue[0]
	p.queue = p.queue[1:]
	return c, true
}

// Stop drops the queue and waits for the current clip to end.
func (p *Player) Stop() {
	p.mu.Lock()
	p.queue = nil
	done := p.done
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.mu.Unlock()

	if done != nil {
		<-done
	}
	log.Debugf("[VOICE] Stopped player for guild %s", p.GuildID)
}

func (p *Player) playLoop() {
	defer close(p.done)

	var vc *discordgo.VoiceConnection
	defer func() {
		if vc != nil {
			vc.Disconnect()
		}
	}()

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		c, ok := p.dequeue()
		if !ok {
			return
		}

		if vc == nil || vc.ChannelID != c.channelID {
			if vc != nil {
				vc.Disconnect()
			}
			var err error
			vc, err = p.session.ChannelVoiceJoin(p.GuildID, c.channelID, false, true)
			if err != nil {
				log.Errorf("[VOICE] Failed to join channel %s: %v", c.channelID, err)
				vc = nil
				continue
			}
			// Give Discord a moment to establish the voice connection
			time.Sleep(250 * time.Millisecond)
		}

		if err := p.playFile(vc, c.path); err != nil {
			log.Errorf("[VOICE] Failed to play %s: %v", c.path, err)
		}
	}
}

func (p *Player) playFile(vc *discordgo.VoiceConnection, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vc.Speaking(true)
	defer vc.Speaking(false)

	return DecodeOpus(f, func(packet []byte) error {
		frame := make([]byte, len(packet))
		copy(frame, packet)
		select {
		case vc.OpusSend <- frame:
			return nil
		case <-p.stop:
			return fmt.Errorf("playback stopped")
		}
	})
}
