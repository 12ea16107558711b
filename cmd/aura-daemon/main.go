package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aura/internal/archive"
	"aura/internal/audio"
	"aura/internal/bus"
	"aura/internal/chat"
	"aura/internal/ipc"
	"aura/internal/listen"
	"aura/internal/playback"
	"aura/internal/proxy"
	"aura/internal/session"
	"aura/internal/tts"
	"aura/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	modelPath := cli.StringP("model", "m", "third_party/whisper.cpp/models/ggml-base.en.bin", "Whisper model path")
	language := cli.String("language", "en", "Transcription language")
	proxyAddr := cli.StringP("proxy", "p", "", "Optional SOCKS proxy address")
	proxyTimeout := cli.Duration("proxy-timeout", 0, "Request timeout through the proxy (0 = default)")
	echoMode := cli.Bool("echo", false, "Echo commands back instead of calling the generation API")
	archiveDir := cli.String("archive", "", "Directory to archive dispatched utterances as wav")
	chimePath := cli.String("chime", "", "Optional mp3 chime played on wake")
	voice := cli.String("voice", "en", "espeak-ng voice")
	duck := cli.Bool("duck", false, "Duck other audio streams during a voice turn")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	rec := audio.NewRecorder(0)
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(*modelPath, stt.Options{Language: *language})
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper")

	threshold := envInt("AURA_THRESHOLD", 900)
	lp := listen.NewLoop(rec, whisper, listen.Config{
		VolumeThreshold: threshold,
		// a threshold of 0 means the operator wants no endpointing
		DisableEndpointing: threshold == 0,
		SilenceDuration:    time.Duration(envInt("AURA_SILENCE_MS", 1500)) * time.Millisecond,
		WakePhrase:         envStr("AURA_WAKE_PHRASE", "aura"),
		WakePhraseAlt:      envStr("AURA_WAKE_ALT", "ora"),
	})

	if *archiveDir != "" {
		arch, err := archive.New(afero.NewOsFs(), *archiveDir)
		if err != nil {
			log.Error("Failed to init archive", "err", err)
			os.Exit(1)
		}
		lp.SetArchive(arch)
	}

	var gen session.Generator
	if *echoMode {
		gen = chat.Echo{}
		log.Info("Echo mode, generation API disabled")
	} else {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Error("OPENAI_API_KEY not set")
			os.Exit(1)
		}

		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if *proxyAddr != "" {
			httpClient, err := proxy.NewSocksClient(*proxyAddr, *proxyTimeout)
			if err != nil {
				log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
				os.Exit(1)
			}
			opts = append(opts, option.WithHTTPClient(httpClient))
			log.Debug("Loaded proxy")
		}

		gen = chat.New(openai.NewClient(opts...), chat.Config{
			Model: os.Getenv("AURA_MODEL"),
		})
	}

	player := &playback.Player{}
	speaker := &tts.Buffered{
		Engine: &tts.Engine{Voice: *voice},
		Sink:   player,
	}

	sess := session.New(lp, speaker, gen, session.Config{})

	if *chimePath != "" {
		sess.SetChime(func() error { return player.Chime(*chimePath) })
	}
	if *duck {
		sess.SetDucker(audio.NewDucker([]string{"aura"}, 0.3))
	}
	if url := os.Getenv("BUS_URL"); url != "" {
		b, err := bus.Dial(url, "aura")
		if err != nil {
			log.Warn("Failed to connect to bus", "url", url, "err", err)
		} else {
			defer b.Close()
			sess.SetNotifier(b)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ipc.StartServer(func(msg ipc.ControlMessage) ipc.Response {
		switch msg.Cmd {
		case "status":
			return ipc.Response{Ok: true, Detail: lp.Mode().String()}
		case "say":
			if err := speaker.Say(ctx, msg.Arg); err != nil {
				return ipc.Response{Ok: false, Detail: err.Error()}
			}
			return ipc.Response{Ok: true}
		case "stop":
			cancel()
			return ipc.Response{Ok: true}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Response{Ok: false, Detail: "unknown command"}
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	errc := make(chan error, 2)
	go func() { errc <- lp.Run(ctx) }()
	go func() { errc <- sess.Run(ctx) }()

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Session terminated", "err", err)
		os.Exit(1)
	}

	log.Info("Shut down")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("Ignoring malformed env value", "key", key, "value", v)
		return fallback
	}
	return n
}
