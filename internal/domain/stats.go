package domain

// UserStats holds per-user counters. Wins+Losses+Draws always equals
// GamesPlayed.
type UserStats struct {
    UserID      string
    GamesPlayed int
    Wins        int
    Losses      int
    Draws       int
}

// Record applies the outcome of a finished game to the stats of one of its
// players. It is a no-op for ongoing games and for users who did not play.
func (s *UserStats) Record(g *Game) {
    if !g.Status.Terminal() || g.SymbolOf(s.UserID) == Empty {
        return
    }
    s.GamesPlayed++
    switch {
    case g.Status == GameDraw:
        s.Draws++
    case g.Winner == s.UserID:
        s.Wins++
    default:
        s.Losses++
    }
}
