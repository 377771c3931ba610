package server

import (
	"errors"
	"net/http"
	"tetrion/proto"
	"tetrion/tetris"

	"github.com/gin-gonic/gin"
)

// viewJSON is the HTTP rendering of a View.
type viewJSON struct {
	Grid     []string `json:"grid"`
	Upcoming []string `json:"upcoming"`
	Held     string   `json:"held"`
	Score    int      `json:"score"`
	Lines    int      `json:"lines"`
	Pieces   int      `json:"pieces"`
	State    string   `json:"state"`
	Playing  bool     `json:"playing"`
}

func newViewJSON(v tetris.View) viewJSON {
	upcoming := make([]string, len(v.Upcoming))
	for i, s := range v.Upcoming {
		upcoming[i] = string(s)
	}
	return viewJSON{
		Grid:     proto.EncodeGrid(v.Grid),
		Upcoming: upcoming,
		Held:     string(v.Held),
		Score:    v.Score,
		Lines:    v.Lines,
		Pieces:   v.Pieces,
		State:    v.State.String(),
		Playing:  v.Playing,
	}
}

// NewHTTP returns the read only HTTP API of hub.
func NewHTTP(hub *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	r.GET("/sessions", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"sessions": hub.IDs()})
	})

	r.GET("/sessions/:id", func(ctx *gin.Context) {
		v, err := hub.View(ctx.Param("id"))
		if errors.Is(err, ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, newViewJSON(v))
	})

	return r
}
