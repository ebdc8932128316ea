// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package relay_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// uniqueRoom keeps specs independent while the relay is shared.
func uniqueRoom() string {
	return "room-" + ulid.Make().String()
}

func getJSON(path string) map[string]any {
	resp, err := http.Get("http://" + env.api.Addr() + path)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	var m map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&m)).To(Succeed())
	return m
}

var _ = Describe("Room relay", func() {
	var room string

	BeforeEach(func() {
		room = uniqueRoom()
	})

	Describe("typing indicators", func() {
		It("relays to other members of the room but never echoes to the sender", func() {
			u1 := join("u1", room)
			u2 := join("u2", room)
			elsewhere := join("u3", uniqueRoom())

			u1.send(`{"type":"typing"}`)

			Expect(u2.expectFrame()).To(Equal(map[string]any{
				"type": "user_typing", "userId": "u1", "roomId": room,
			}))
			u1.expectNothing()
			elsewhere.expectNothing()
		})

		It("ignores malformed and unknown frames without closing the socket", func() {
			u1 := join("u1", room)
			u2 := join("u2", room)

			u1.send(`{{{`)
			u1.send(`{"type":"wave"}`)
			u1.send(`{"type":"typing"}`)

			Expect(u2.expectFrame()).To(HaveKeyWithValue("type", "user_typing"))
			Expect(env.hub.IsUserOnlineInRoom("u1", room)).To(BeTrue())
		})
	})

	Describe("new message notifications", func() {
		It("delivers API notifications to every member including the author", func() {
			u1 := join("u1", room)
			u2 := join("u2", room)

			resp, err := http.Post(
				fmt.Sprintf("http://%s/rooms/%s/messages", env.api.Addr(), room),
				"application/json",
				bytes.NewBufferString(`{"id":"m1","text":"hello","authorId":"u1"}`),
			)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			for _, c := range []*client{u1, u2} {
				frame := c.expectFrame()
				Expect(frame).To(HaveKeyWithValue("type", "new_message"))
				Expect(frame).To(HaveKeyWithValue("roomId", room))
				Expect(frame["message"]).To(HaveKeyWithValue("id", "m1"))
			}
		})

		It("delivers PostgreSQL notifications to the room", func() {
			u1 := join("u1", room)

			payload := fmt.Sprintf(`{"roomId":%q,"message":{"id":"m2"}}`, room)
			_, err := env.pgConn.Exec(env.ctx, "SELECT pg_notify($1, $2)", notifyChannel, payload)
			Expect(err).NotTo(HaveOccurred())

			frame := u1.expectFrame()
			Expect(frame).To(HaveKeyWithValue("type", "new_message"))
			Expect(frame["message"]).To(Equal(map[string]any{"id": "m2"}))
		})

		It("accepts notifications for rooms nobody is in", func() {
			resp, err := http.Post(
				fmt.Sprintf("http://%s/rooms/%s/messages", env.api.Addr(), uniqueRoom()),
				"application/json",
				bytes.NewBufferString(`"orphan"`),
			)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})
	})

	Describe("presence", func() {
		It("tracks membership through connect and disconnect", func() {
			u1 := join("u1", room)
			join("u2", room)

			Expect(getJSON("/rooms/" + room + "/clients")).To(HaveKeyWithValue("count", BeNumerically("==", 2)))
			Expect(getJSON("/rooms/" + room + "/users/u1/online")).To(HaveKeyWithValue("online", true))

			Expect(u1.ws.Close()).To(Succeed())

			Eventually(func() int { return env.hub.RoomClientCount(room) }).
				WithTimeout(2 * time.Second).Should(Equal(1))
			Expect(getJSON("/rooms/" + room + "/users/u1/online")).To(HaveKeyWithValue("online", false))
		})

		It("replaces an older socket for the same user and room", func() {
			first := join("u1", room)
			second := join("u1", room)

			_, err := first.next(2 * time.Second)
			Expect(websocket.IsCloseError(err, websocket.ClosePolicyViolation)).To(BeTrue(), "got %v", err)

			Expect(env.hub.RoomClientCount(room)).To(Equal(1))
			second.expectNothing()
		})
	})

	Describe("admission", func() {
		It("closes sockets without a room or user with a policy violation", func() {
			u := fmt.Sprintf("ws://%s/ws?roomId=%s", env.websocket.Addr(), room)
			ws, resp, err := websocket.DefaultDialer.Dial(u, nil)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			defer ws.Close()

			Expect(ws.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
			_, _, err = ws.ReadMessage()
			Expect(websocket.IsCloseError(err, websocket.ClosePolicyViolation)).To(BeTrue(), "got %v", err)
			Expect(env.hub.RoomClientCount(room)).To(BeZero())
		})
	})
})
