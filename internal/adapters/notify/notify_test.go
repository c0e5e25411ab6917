package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/streadway/amqp"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/notify"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	out  []published
	fail error
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.out = append(f.out, published{key: key, msg: msg})
	return nil
}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeMQTT struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return fakeToken{err: f.err}
}

type fakeDiscord struct {
	channels []string
	content  []string
}

func (f *fakeDiscord) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channels = append(f.channels, channelID)
	f.content = append(f.content, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func activity(group string) model.Activity {
	return model.Activity{GroupID: group, Kind: model.ActivityOVRUpdate, Message: "Ana: OVR 70 to 72", CreatedAt: time.Now()}
}

func notification(user string) model.Notification {
	return model.Notification{UserID: user, GroupID: "g1", Kind: model.NotifyOVRChange, Title: "Your rating changed", CreatedAt: time.Now()}
}

func TestMulti(t *testing.T) {
	Convey("Given a fan-out of two recorders and a nil slot", t, func() {
		a, b := &notify.Recorder{}, &notify.Recorder{}
		m := notify.Multi{a, nil, b}
		m.Notify(context.Background(), notification("p1"))
		m.LogActivity(context.Background(), activity("g1"))

		Convey("Each sink sees every event", func() {
			So(a.Notifications(), ShouldHaveLength, 1)
			So(b.Notifications(), ShouldHaveLength, 1)
			So(a.Activities(), ShouldHaveLength, 1)
			So(b.Activities()[0].GroupID, ShouldEqual, "g1")
		})
	})
}

func TestAMQPSink(t *testing.T) {
	Convey("Given an AMQP sink on a fake channel", t, func() {
		ch := &fakeChannel{}
		s := notify.NewAMQPSink(ch, "", nil)

		Convey("Notifications and activities use distinct routing keys", func() {
			s.Notify(context.Background(), notification("p1"))
			s.LogActivity(context.Background(), activity("g1"))
			So(ch.out, ShouldHaveLength, 2)
			So(ch.out[0].key, ShouldEqual, "notification.ovr_change")
			So(ch.out[1].key, ShouldEqual, "activity.g1.ovr_update")
			So(ch.out[0].msg.ContentType, ShouldEqual, "application/json")

			var n model.Notification
			So(json.Unmarshal(ch.out[0].msg.Body, &n), ShouldBeNil)
			So(n.UserID, ShouldEqual, "p1")
		})

		Convey("A broker failure is swallowed", func() {
			ch.fail = errors.New("channel closed")
			So(func() { s.LogActivity(context.Background(), activity("g1")) }, ShouldNotPanic)
			So(ch.out, ShouldBeEmpty)
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestMQTTSink(t *testing.T) {
	Convey("Given an MQTT sink on a fake client", t, func() {
		c := &fakeMQTT{}
		s := notify.NewMQTTSink(c, nil)

		Convey("Notifications go to the player topic", func() {
			s.Notify(context.Background(), notification("p7"))
			So(c.topics, ShouldResemble, []string{"futbol/users/p7"})
			So(string(c.payloads[0]), ShouldContainSubstring, `"kind":"ovr_change"`)
		})

		Convey("Activities go to the group feed topic", func() {
			s.LogActivity(context.Background(), activity("g2"))
			So(c.topics, ShouldResemble, []string{notify.GroupTopic("g2")})
		})

		Convey("A failed token does not panic", func() {
			c.err = errors.New("not connected")
			So(func() { s.Notify(context.Background(), notification("p1")) }, ShouldNotPanic)
		})
	})
}

func TestDiscordSink(t *testing.T) {
	Convey("Given a Discord sink with one mapped group", t, func() {
		dg := &fakeDiscord{}
		s := notify.NewDiscordSink(dg, "", map[string]string{"g1": "chan-1"}, nil)

		Convey("Mapped group activity is posted to its channel", func() {
			s.LogActivity(context.Background(), activity("g1"))
			So(dg.channels, ShouldResemble, []string{"chan-1"})
			So(dg.content[0], ShouldContainSubstring, "Ana: OVR 70 to 72")
		})

		Convey("Unmapped groups without a fallback are skipped", func() {
			s.LogActivity(context.Background(), activity("g9"))
			So(dg.channels, ShouldBeEmpty)
		})

		Convey("Player notifications are not posted", func() {
			s.Notify(context.Background(), notification("p1"))
			So(dg.channels, ShouldBeEmpty)
		})

		Convey("A fallback channel catches unmapped groups", func() {
			s := notify.NewDiscordSink(dg, "general", nil, nil)
			s.LogActivity(context.Background(), activity("g9"))
			So(dg.channels, ShouldResemble, []string{"general"})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestHub(t *testing.T) {
	Convey("Given a running hub with one subscriber in g1", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		hub := notify.NewHub(nil)
		go hub.Run(ctx)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub.Serve(w, r, r.URL.Query().Get("group"), r.URL.Query().Get("person"))
		}))
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?group=g1&person=p1"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()
		So(waitFor(func() bool { return hub.Clients("g1") == 1 }), ShouldBeTrue)

		read := func() notify.Message {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var m notify.Message
			So(conn.ReadJSON(&m), ShouldBeNil)
			return m
		}

		Convey("Room activity reaches the subscriber", func() {
			hub.LogActivity(context.Background(), activity("g1"))
			m := read()
			So(m.Type, ShouldEqual, "activity")
			So(m.RoomID, ShouldEqual, "g1")
		})

		Convey("Only the addressed player's notifications are delivered", func() {
			hub.Notify(context.Background(), notification("p2"))
			hub.LogActivity(context.Background(), activity("g2"))
			hub.Notify(context.Background(), notification("p1"))
			m := read()
			So(m.Type, ShouldEqual, "notification")
			payload := m.Payload.(map[string]interface{})
			So(payload["userId"], ShouldEqual, "p1")
		})

		Convey("Closing the socket leaves the room", func() {
			So(conn.Close(), ShouldBeNil)
			So(waitFor(func() bool { return hub.Clients("g1") == 0 }), ShouldBeTrue)
		})
	})
}
