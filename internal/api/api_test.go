package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/Tyrowin/roomrelay/internal/files"
	"github.com/Tyrowin/roomrelay/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type testAPI struct {
	handler *Handler
	store   *store.Store
	tokens  *auth.JWT
}

func newTestAPI(t *testing.T, maxUpload int64) *testAPI {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	st, err := store.Open("", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := files.NewService(filepath.Join(t.TempDir(), "uploads"), maxUpload, st, log)
	require.NoError(t, err)

	tokens := auth.NewJWT("a-test-secret-that-is-long-enough", time.Hour)
	return &testAPI{
		handler: New(Config{}, Dependencies{Store: st, Tokens: tokens, Files: svc}, log),
		store:   st,
		tokens:  tokens,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, r)
	return rr
}

func (a *testAPI) upload(t *testing.T, token, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, r)
	return rr
}

// register creates an account through the API and returns its token and id.
func (a *testAPI) register(t *testing.T, username string) (string, string) {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[sessionResponse](t, rr)
	return resp.Token, resp.User.ID
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestAccounts(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, 0)

	token, userID := a.register(t, "alice")
	identity, err := a.tokens.Verify(token)
	req.NoError(err)
	req.Equal(chat.Identity{UserID: userID, Username: "alice"}, identity)

	rr := a.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
		Username: "alice2", Email: "ALICE@example.com", Password: "another password",
	})
	req.Equal(http.StatusConflict, rr.Code)

	rr = a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "bob"})
	req.Equal(http.StatusBadRequest, rr.Code)
	req.Equal("All fields are required", decode[messageResponse](t, rr).Message)

	rr = a.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	req.Equal(http.StatusOK, rr.Code)
	login := decode[sessionResponse](t, rr)
	req.Equal(userID, login.User.ID)
	req.NotEmpty(login.Token)

	user, err := a.store.UserByID(context.Background(), userID)
	req.NoError(err)
	req.False(user.LastSeenAt.IsZero())

	for _, body := range []loginRequest{
		{Email: "alice@example.com", Password: "wrong password"},
		{Email: "nobody@example.com", Password: "correct horse battery"},
	} {
		rr = a.do(t, http.MethodPost, "/api/auth/login", "", body)
		req.Equal(http.StatusUnauthorized, rr.Code)
		req.Equal("Invalid credentials", decode[messageResponse](t, rr).Message)
	}

	rr = a.do(t, http.MethodPost, "/api/auth/validate", login.Token, nil)
	req.Equal(http.StatusOK, rr.Code)
	valid := decode[validateResponse](t, rr)
	req.True(valid.Valid)
	req.Equal("alice", valid.User.Username)

	rr = a.do(t, http.MethodPost, "/api/auth/validate", "", nil)
	req.Equal(http.StatusUnauthorized, rr.Code)
	rr = a.do(t, http.MethodPost, "/api/auth/validate", "garbage", nil)
	req.Equal(http.StatusUnauthorized, rr.Code)
	req.Equal("Invalid or expired token", decode[messageResponse](t, rr).Message)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newTestAPI(t, 0)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/chat/rooms"},
		{http.MethodPost, "/api/chat/rooms"},
		{http.MethodGet, "/api/chat/rooms/mine"},
		{http.MethodPost, "/api/chat/rooms/r1/join"},
		{http.MethodGet, "/api/chat/rooms/r1/messages"},
		{http.MethodPost, "/api/files/upload"},
		{http.MethodDelete, "/api/files/f1"},
	} {
		rr := a.do(t, route.method, route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code, route.path)

		rr = a.do(t, route.method, route.path, "not-a-token", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestRooms(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, 0)
	aliceToken, aliceID := a.register(t, "alice")
	bobToken, bobID := a.register(t, "bob")

	rr := a.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, createRoomRequest{Name: " general "})
	req.Equal(http.StatusCreated, rr.Code)
	general := decode[roomResponse](t, rr)
	req.Equal("general", general.Name)
	req.Equal(aliceID, general.CreatedBy)

	rr = a.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, createRoomRequest{Name: "staff", IsPrivate: true})
	req.Equal(http.StatusCreated, rr.Code)
	staff := decode[roomResponse](t, rr)

	rr = a.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, createRoomRequest{})
	req.Equal(http.StatusBadRequest, rr.Code)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms", bobToken, nil)
	req.Equal(http.StatusOK, rr.Code)
	public := decode[[]roomResponse](t, rr)
	req.Len(public, 1)
	req.Equal(general.ID, public[0].ID)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms/mine", aliceToken, nil)
	req.Len(decode[[]roomResponse](t, rr), 2)

	rr = a.do(t, http.MethodPost, "/api/chat/rooms/"+general.ID+"/join", bobToken, nil)
	req.Equal(http.StatusOK, rr.Code)
	member, err := a.store.IsMember(context.Background(), general.ID, bobID)
	req.NoError(err)
	req.True(member)

	rr = a.do(t, http.MethodPost, "/api/chat/rooms/"+staff.ID+"/join", bobToken, nil)
	req.Equal(http.StatusOK, rr.Code)
	member, err = a.store.IsMember(context.Background(), staff.ID, bobID)
	req.NoError(err)
	req.True(member)

	rr = a.do(t, http.MethodPost, "/api/chat/rooms/missing/join", bobToken, nil)
	req.Equal(http.StatusNotFound, rr.Code)
	req.Equal("Room not found", decode[messageResponse](t, rr).Message)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms/mine", bobToken, nil)
	mine := decode[[]roomResponse](t, rr)
	req.Len(mine, 2)
	req.ElementsMatch([]string{general.ID, staff.ID}, []string{mine[0].ID, mine[1].ID})
}

func TestRoomMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	a := newTestAPI(t, 0)
	aliceToken, aliceID := a.register(t, "alice")
	bobToken, bobID := a.register(t, "bob")

	room, err := a.store.CreateRoom(ctx, "general", false, aliceID)
	req.NoError(err)
	for i, draft := range []chat.MessageDraft{
		{RoomID: room.ID, SenderID: aliceID, Content: "one"},
		{RoomID: room.ID, SenderID: bobID, Content: "two"},
		{RoomID: room.ID, SenderID: aliceID, AttachmentRef: "f1"},
	} {
		_, err := a.store.PersistMessage(ctx, draft)
		req.NoError(err, i)
		time.Sleep(time.Millisecond)
	}

	rr := a.do(t, http.MethodGet, "/api/chat/rooms/"+room.ID+"/messages", bobToken, nil)
	req.Equal(http.StatusOK, rr.Code)
	history := decode[[]historyMessage](t, rr)
	req.Len(history, 3)
	req.Equal("one", history[0].Content)
	req.Equal("alice", history[0].Username)
	req.Equal("bob", history[1].Username)
	req.Equal("image", history[2].MessageType)
	req.Equal("/api/files/f1", history[2].FileURL)
	req.Equal("text", history[0].MessageType)
	req.Empty(history[0].FileURL)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms/"+room.ID+"/messages?limit=2", bobToken, nil)
	latest := decode[[]historyMessage](t, rr)
	req.Len(latest, 2)
	req.Equal("two", latest[0].Content)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms/"+room.ID+"/messages?limit=abc", bobToken, nil)
	req.Len(decode[[]historyMessage](t, rr), 3)

	rr = a.do(t, http.MethodGet, "/api/chat/rooms/missing/messages", bobToken, nil)
	req.Equal(http.StatusNotFound, rr.Code)

	private, err := a.store.CreateRoom(ctx, "staff", true, aliceID)
	req.NoError(err)
	rr = a.do(t, http.MethodGet, "/api/chat/rooms/"+private.ID+"/messages", bobToken, nil)
	req.Equal(http.StatusForbidden, rr.Code)
	rr = a.do(t, http.MethodGet, "/api/chat/rooms/"+private.ID+"/messages", aliceToken, nil)
	req.Equal(http.StatusOK, rr.Code)
	req.Empty(decode[[]historyMessage](t, rr))
}

func TestFiles(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, 1024)
	aliceToken, _ := a.register(t, "alice")
	bobToken, _ := a.register(t, "bob")

	rr := a.upload(t, aliceToken, "cat.png", pngBytes)
	req.Equal(http.StatusCreated, rr.Code, rr.Body.String())
	up := decode[uploadResponse](t, rr)
	req.Equal("cat.png", up.OriginalName)
	req.Equal("image/png", up.MimeType)
	req.Equal("/api/files/"+up.ID, up.URL)

	rr = a.do(t, http.MethodGet, up.URL, "", nil)
	req.Equal(http.StatusOK, rr.Code)
	req.Equal("image/png", rr.Header().Get("Content-Type"))
	req.Equal(`inline; filename=cat.png`, rr.Header().Get("Content-Disposition"))
	req.Equal(pngBytes, rr.Body.Bytes())

	rr = a.upload(t, aliceToken, "notes.txt", []byte("plain text is not an image"))
	req.Equal(http.StatusUnsupportedMediaType, rr.Code)

	rr = a.upload(t, aliceToken, "huge.png", append(pngBytes, make([]byte, 2048)...))
	req.Equal(http.StatusRequestEntityTooLarge, rr.Code)

	rr = a.do(t, http.MethodPost, "/api/files/upload", aliceToken, nil)
	req.Equal(http.StatusBadRequest, rr.Code)

	rr = a.do(t, http.MethodDelete, up.URL, bobToken, nil)
	req.Equal(http.StatusForbidden, rr.Code)

	rr = a.do(t, http.MethodDelete, up.URL, aliceToken, nil)
	req.Equal(http.StatusOK, rr.Code)

	rr = a.do(t, http.MethodGet, up.URL, "", nil)
	req.Equal(http.StatusNotFound, rr.Code)
	rr = a.do(t, http.MethodDelete, up.URL, aliceToken, nil)
	req.Equal(http.StatusNotFound, rr.Code)
}

func TestDecodeBodyLimits(t *testing.T) {
	a := newTestAPI(t, 0)
	huge := `{"email":"` + strings.Repeat("a", maxJSONBody) + `","password":"x"}`

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(huge))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, r)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
