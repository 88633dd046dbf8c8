package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/services"
	"watchparty/internal/infrastructure/media"
	redisrepo "watchparty/internal/infrastructure/repositories/redis"
	webrtcinfra "watchparty/internal/infrastructure/webrtc"
	"watchparty/pkg/config"
	"watchparty/pkg/logger"
	"watchparty/pkg/retry"
	"watchparty/pkg/utils"

	pion "github.com/pion/webrtc/v3"
	"github.com/redis/go-redis/v9"
)

// The agent is a headless room participant: it keeps presence fresh, follows
// the host's playback, and joins the two-party voice channel with a silent
// audio track.
func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		roomID     = flag.String("room", "", "room to join (required)")
		name       = flag.String("name", "agent", "display name")
		voice      = flag.Bool("voice", true, "join the voice channel")
		muted      = flag.Bool("muted", false, "start muted")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if *roomID == "" {
		log.Fatal("-room is required")
	}

	var client *redis.Client
	err = retry.Retry(context.Background(), retry.DefaultConfig(), func() error {
		var connErr error
		client, connErr = redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			log,
		)
		return connErr
	})
	if err != nil {
		log.Fatalw("failed to connect to Redis", "address", cfg.Redis.Address, "error", err)
	}
	defer redisrepo.CloseRedisClient(client)

	roomRepo := redisrepo.NewRedisRoomRepository(client, log)
	signalRepo := redisrepo.NewRedisSignalRepository(client, log)
	participantRepo := redisrepo.NewRedisParticipantRepository(client, log)

	identity := domain.Identity{
		UID:         domain.UserID(utils.GenerateGuestID()),
		DisplayName: *name,
	}
	room := domain.RoomID(*roomID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	var wg sync.WaitGroup

	// Playback sync against the host's room document.
	player := newHeadlessPlayer()
	engine := services.NewSyncEngine(
		roomRepo,
		player,
		room,
		identity.UID,
		cfg.Sync.SuppressWindow,
		nil,
		log,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("sync engine stopped", "error", err)
			cancel()
		}
	}()

	// Presence heartbeats.
	tracker := services.NewPresenceTracker(participantRepo, roomRepo, room, identity, nil, log)
	tracker.SetMuted(*muted)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tracker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("presence tracker stopped", "error", err)
		}
	}()

	// Voice channel with a silent local track and level monitoring of the
	// remote peer.
	if *voice {
		speakers := media.NewSpeakerTracker()

		var iceServers []pion.ICEServer
		for _, s := range cfg.WebRTC.ICEServers {
			iceServers = append(iceServers, pion.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
		linkCfg := webrtcinfra.DefaultConfig()
		if len(iceServers) > 0 {
			linkCfg = webrtcinfra.Config{ICEServers: iceServers}
		}
		link, err := webrtcinfra.NewPeerConnectionLink(linkCfg, log)
		if err != nil {
			log.Fatalw("failed to create peer connection", "error", err)
		}

		var session *services.VoiceSession
		localMonitor := media.NewLevelMonitor(identity.UID, speakers,
			media.WithMuteCheck(func() bool { return session.Muted() }))
		provider := media.NewProvider(
			func() (media.SampleSource, error) { return media.NewSilenceSource(), nil },
			localMonitor,
			log,
		)

		session = services.NewVoiceSession(signalRepo, participantRepo, provider, link, room, identity, nil, log)
		session.OnRemoteTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
			remoteMonitor := media.NewLevelMonitor(domain.UserID("remote"), speakers)
			reader := media.NewTrackReader(remoteMonitor, log)
			go reader.Run(ctx, track)
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := session.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("voice session stopped", "error", err)
			}
		}()

		if *muted {
			// The microphone only exists once the session has acquired media,
			// so the initial mute is applied with retries.
			go func() {
				_ = retry.Retry(ctx, retry.DefaultConfig(), func() error {
					return session.SetMuted(ctx, true)
				})
			}()
		}
	}

	log.Infow("agent joined room", "room_id", room, "user_id", identity.UID)
	wg.Wait()
}
