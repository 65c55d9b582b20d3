package server

import (
	"github.com/labstack/echo/v4"
)

// handleTeamActivityWS streams ticket events of a team over a websocket
// connection.
func (s *Server) handleTeamActivityWS(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	team := c.Param("team")
	if _, _, err := s.tracker.GetTeam(user.Username, team); err != nil {
		return trackerHTTPError(err)
	}
	return s.activity.Serve(team, c.Response(), c.Request())
}
