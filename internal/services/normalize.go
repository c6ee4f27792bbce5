package services

import (
	"time"

	"github.com/liamwears/flowkh/internal/models"
)

// Image sizes used by the catalog
const (
	posterSize        = "w500"
	backdropSize      = "w780"
	largeBackdropSize = "w1280"
	logoSize          = "w500"
	castProfileSize   = "w185"
	actorProfileSize  = "h632"
	stillSize         = "w500"

	maxGenresPerTitle = 2
	maxCastMembers    = 15
	unknownYear       = "N/A"
	youtubeEmbedURL   = "https://www.youtube.com/embed/"
)

// Normalizer turns raw catalog records into the application's shapes
type Normalizer struct {
	imageURL func(size, path string) string
	genres   *GenreLookup
}

// NewNormalizer creates a normalizer resolving images with imageURL and genre
// ids with genres
func NewNormalizer(imageURL func(size, path string) string, genres *GenreLookup) *Normalizer {
	return &Normalizer{imageURL: imageURL, genres: genres}
}

// Movies converts listing records. Records without a poster, a backdrop or an
// overview are dropped. forced overrides the record's own media type.
func (n *Normalizer) Movies(records []RawTitle, forced models.MediaType) []models.Movie {
	movies := make([]models.Movie, 0, len(records))
	for _, item := range records {
		if deref(item.BackdropPath) == "" || deref(item.PosterPath) == "" || item.Overview == "" {
			continue
		}

		mediaType := forced
		if mediaType == "" {
			mediaType = item.MediaType
		}
		if !mediaType.Valid() {
			mediaType = models.MediaTypeMovie
		}

		title := item.Title
		if title == "" {
			title = item.Name
		}

		movies = append(movies, models.Movie{
			ID:          item.ID,
			MediaType:   mediaType,
			Title:       title,
			Description: item.Overview,
			PosterURL:   n.imageURL(posterSize, *item.PosterPath),
			BackdropURL: n.imageURL(backdropSize, *item.BackdropPath),
			Rating:      item.VoteAverage,
			ReleaseYear: releaseYear(item.ReleaseDate, item.FirstAirDate),
			Genres:      n.genreNames(mediaType, item.GenreIDs),
		})
	}
	return movies
}

func (n *Normalizer) genreNames(mediaType models.MediaType, ids []int) []string {
	names := make([]string, 0, maxGenresPerTitle)
	for _, id := range ids {
		if len(names) == maxGenresPerTitle {
			break
		}
		if name, ok := n.genres.Name(mediaType, id); ok {
			names = append(names, name)
		}
	}
	return names
}

// releaseYear picks the first present date and returns its year, or "N/A"
func releaseYear(releaseDate, firstAirDate string) string {
	date := releaseDate
	if date == "" {
		date = firstAirDate
	}
	if date == "" {
		return unknownYear
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006")
		}
	}
	return unknownYear
}

// Detail converts a detail response. Seasons numbered 0 (specials) are left out.
func (n *Normalizer) Detail(data *tmdbDetailResponse, mediaType models.MediaType) models.MovieDetail {
	title := data.Title
	if title == "" {
		title = data.Name
	}

	genres := make([]string, 0, len(data.Genres))
	for _, g := range data.Genres {
		genres = append(genres, g.Name)
	}

	runtime := data.Runtime
	if runtime == 0 && len(data.EpisodeRunTime) > 0 {
		runtime = data.EpisodeRunTime[0]
	}

	details := models.MovieDetail{
		Movie: models.Movie{
			ID:          data.ID,
			MediaType:   mediaType,
			Title:       title,
			Description: data.Overview,
			PosterURL:   n.imageURL(posterSize, deref(data.PosterPath)),
			BackdropURL: n.imageURL(backdropSize, deref(data.BackdropPath)),
			Rating:      data.VoteAverage,
			ReleaseYear: releaseYear(data.ReleaseDate, data.FirstAirDate),
			Genres:      genres,
		},
		Runtime: runtime,
	}

	if data.Images != nil {
		details.LogoURL = n.pickLogo(data.Images.Logos)
	}
	if data.Videos != nil {
		details.TrailerURL = pickTrailer(data.Videos.Results)
	}
	if data.ExternalIDs != nil {
		details.IMDbID = deref(data.ExternalIDs.IMDbID)
	}

	if mediaType == models.MediaTypeTV {
		details.NumberOfSeasons = data.NumberOfSeasons
		details.Seasons = normalizeSeasons(data.Seasons, false)
	}

	return details
}

// pickLogo prefers the first english logo and falls back to the first logo.
// Ties keep upstream order, which TMDB does not guarantee to be stable.
func (n *Normalizer) pickLogo(logos []tmdbLogo) string {
	for _, logo := range logos {
		if logo.ISO639_1 == "en" && logo.FilePath != "" {
			return n.imageURL(logoSize, logo.FilePath)
		}
	}
	if len(logos) > 0 {
		return n.imageURL(logoSize, logos[0].FilePath)
	}
	return ""
}

// pickTrailer returns the embed URL of the first YouTube video of type Trailer
func pickTrailer(videos []tmdbVideo) string {
	for _, v := range videos {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			return youtubeEmbedURL + v.Key
		}
	}
	return ""
}

func normalizeSeasons(seasons []*tmdbSeason, requireEpisodes bool) []models.Season {
	out := make([]models.Season, 0, len(seasons))
	for _, s := range seasons {
		if s == nil || s.SeasonNumber <= 0 {
			continue
		}
		if requireEpisodes && s.EpisodeCount <= 0 {
			continue
		}
		out = append(out, models.Season{
			ID:           s.ID,
			SeasonNumber: s.SeasonNumber,
			Name:         s.Name,
			EpisodeCount: s.EpisodeCount,
		})
	}
	return out
}

// Cast converts the first credited cast members
func (n *Normalizer) Cast(members []tmdbCastMember) []models.Actor {
	if len(members) > maxCastMembers {
		members = members[:maxCastMembers]
	}
	cast := make([]models.Actor, 0, len(members))
	for _, m := range members {
		character := m.Character
		if character == "" && len(m.Roles) > 0 {
			character = m.Roles[0].Character
		}
		cast = append(cast, models.Actor{
			ID:          m.ID,
			Name:        m.Name,
			Character:   character,
			ProfilePath: n.imageURL(castProfileSize, deref(m.ProfilePath)),
		})
	}
	return cast
}

// Person converts a person record
func (n *Normalizer) Person(p *tmdbPersonResponse) models.ActorDetail {
	return models.ActorDetail{
		Actor: models.Actor{
			ID:          p.ID,
			Name:        p.Name,
			ProfilePath: n.imageURL(actorProfileSize, deref(p.ProfilePath)),
		},
		Biography:          p.Biography,
		Birthday:           deref(p.Birthday),
		PlaceOfBirth:       deref(p.PlaceOfBirth),
		KnownForDepartment: p.KnownForDepartment,
	}
}

// Episodes converts the episodes of a season
func (n *Normalizer) Episodes(episodes []tmdbEpisode) []models.Episode {
	out := make([]models.Episode, 0, len(episodes))
	for _, ep := range episodes {
		runtime := 0
		if ep.Runtime != nil {
			runtime = *ep.Runtime
		}
		out = append(out, models.Episode{
			ID:            ep.ID,
			EpisodeNumber: ep.EpisodeNumber,
			Name:          ep.Name,
			Overview:      ep.Overview,
			StillPath:     n.imageURL(stillSize, deref(ep.StillPath)),
			AirDate:       deref(ep.AirDate),
			Runtime:       runtime,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
