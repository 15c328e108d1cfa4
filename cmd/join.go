package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/client"
	"github.com/pairline/pairline/internal/config"
	"github.com/pairline/pairline/internal/logging"
	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/rtc"
	"github.com/pairline/pairline/internal/session"
	"github.com/pairline/pairline/internal/ui"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room>",
	Aliases: []string{"j"},
	Short:   "Join a room from the terminal",
	Long: `Join a room, negotiate the call with whoever else is there, and chat
over the signaling channel.

Examples:
  pairline join standup
  pairline join standup --server wss://pairline.example.com/ws
  pairline join standup --relay --turn turn:turn.example.com --turn-user u --turn-pass p`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(room string) error {
	if room == "" {
		return errors.New("room name must not be empty")
	}

	log := logging.New()

	cfg, err := config.Load(config.Options{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return err
	}

	sp := ui.NewConnectionSpinner("Connecting to " + cfg.ServerURL + "...")
	sp.Start()

	conn := client.New(cfg.ServerURL, log)
	if err := conn.Connect(); err != nil {
		sp.Error("Connection failed")
		return err
	}
	defer conn.Close()
	sp.Stop()

	engine := rtc.NewEngine(cfg, log)

	events := &teaEvents{}
	ctrl := session.New(conn, engine, events, log)
	defer ctrl.Close()

	program := tea.NewProgram(ui.NewModel(room, ctrl), tea.WithAltScreen())
	events.program = program

	engine.OnConnectionStateChange(rtcStateReporter(program))
	engine.OnTrack(func(kind protocol.ChannelKind, track *pion.TrackRemote) {
		program.Send(ui.StatusMsg{Text: fmt.Sprintf("receiving %s (%s)", kind, track.Codec().MimeType)})
	})

	go func() {
		for msg := range conn.Incoming() {
			ctrl.HandleMessage(msg)
		}
		program.Send(ui.DisconnectedMsg{Err: errors.New("lost connection to signaling server")})
	}()

	ctrl.JoinRoom(room)

	model, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := model.(ui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

// teaEvents forwards session events into the UI loop. program is set
// before the first signaling message is processed.
type teaEvents struct {
	program *tea.Program
}

func (e *teaEvents) PeerJoined(id string) {
	e.program.Send(ui.PeerJoinedMsg{ID: id})
}

func (e *teaEvents) PeerLeft(id string) {
	e.program.Send(ui.PeerLeftMsg{ID: id})
}

func (e *teaEvents) Chat(sender, text string) {
	e.program.Send(ui.ChatMsg{Sender: sender, Text: text})
}

func (e *teaEvents) ScreenShareStarted(sender string) {
	e.program.Send(ui.ScreenShareMsg{Sender: sender})
}

func rtcStateReporter(program *tea.Program) rtc.StateHandler {
	return func(kind protocol.ChannelKind, state pion.PeerConnectionState) {
		if state == pion.PeerConnectionStateFailed {
			program.Send(ui.StatusMsg{Text: fmt.Sprintf("%s: %v", kind, rtc.ErrConnectionFailed)})
			return
		}
		program.Send(ui.StatusMsg{Text: fmt.Sprintf("%s connection %s", kind, state)})
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagServer, "server", "", "Signaling server URL (default "+config.DefaultServerURL+")")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
