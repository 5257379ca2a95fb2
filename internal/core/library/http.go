// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/albumin/internal/catalog"
	"github.com/taibuivan/albumin/internal/platform/constants"
	requestutil "github.com/taibuivan/albumin/internal/platform/request"
	"github.com/taibuivan/albumin/internal/platform/respond"
	"github.com/taibuivan/albumin/internal/platform/validate"
	"github.com/taibuivan/albumin/pkg/pagination"
	"github.com/taibuivan/albumin/pkg/query"
	"github.com/taibuivan/albumin/pkg/slice"
)

// maxKeywordLength bounds search input.
const maxKeywordLength = 200

// # Catalog Port

// Catalog is the slice of a per-user [catalog.Session] the library endpoints use.
type Catalog interface {
	GetAlbum(ctx context.Context, id string) (*catalog.Album, error)
	GetAlbums(ctx context.Context, ids []string) ([]catalog.Album, error)
	SavedAlbums(ctx context.Context, limit, offset int, keep func([]catalog.Album) []catalog.Album) ([]catalog.Album, error)
	SearchAlbums(ctx context.Context, keywords string, limit, offset int) ([]catalog.Album, error)
	SearchArtists(ctx context.Context, keywords string, limit, offset int) (*catalog.Paging[catalog.Artist], error)
	SaveAlbums(ctx context.Context, ids []string) error
	RemoveAlbums(ctx context.Context, ids []string) error
	ContainsSavedAlbums(ctx context.Context, ids []string) ([]bool, error)
}

// CatalogOpener returns a catalog client bound to the given user's credentials.
type CatalogOpener func(ctx context.Context, userID string) (Catalog, error)

// # Handler

// Handler implements the /api/me library endpoints.
type Handler struct {
	libraryService *Service
	openCatalog    CatalogOpener
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, openCatalog CatalogOpener) *Handler {
	return &Handler{libraryService: service, openCatalog: openCatalog}
}

/*
Routes returns the routes mounted under /api/me. Authentication is enforced
by the caller.

# Endpoints
  - GET|PUT|DELETE  /album          : Saved albums, filtered by tags
  - GET             /album/search   : Album search
  - GET             /album/{albumId}: One album with the user's tags
  - GET             /artist/search  : Artist search
  - GET|POST|DELETE /tag            : Tag set
  - GET|POST|DELETE /listening-list : Listening list
*/
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/album", handler.listAlbums)
	router.Put("/album", handler.saveAlbum)
	router.Delete("/album", handler.removeAlbum)
	router.Get("/album/search", handler.searchAlbums)
	router.Get("/album/{albumId}", handler.getAlbum)
	router.Get("/artist/search", handler.searchArtists)

	router.Get("/tag", handler.listTags)
	router.Post("/tag", handler.tagAlbum)
	router.Delete("/tag", handler.untagAlbum)

	router.Get("/listening-list", handler.listListeningList)
	router.Post("/listening-list", handler.addToListeningList)
	router.Delete("/listening-list", handler.removeFromListeningList)

	return router
}

// # Payloads

type albumRef struct {
	SpotifyID string `json:"spotifyId"`
}

type tagRef struct {
	Name string `json:"name"`
}

type albumRequest struct {
	Album albumRef `json:"album"`
}

type tagRequest struct {
	Album albumRef `json:"album"`
	Tag   tagRef   `json:"tag"`
}

// TaggedAlbum is a catalog album decorated with the caller's library state.
type TaggedAlbum struct {
	Album             catalog.Album `json:"album"`
	Tags              []Tag         `json:"tags"`
	IsSavedAlbum      bool          `json:"isSavedAlbum"`
	IsInListeningList bool          `json:"isInListeningList"`
}

// UserAlbum is an entry of the listening list.
type UserAlbum struct {
	Album             catalog.Album `json:"album"`
	IsInListeningList bool          `json:"isInListeningList"`
}

// # Albums

/*
listAlbums returns the user's saved albums and EPs.

GET /api/me/album?tags=["jazz","live"]&untagged=true&limit=&offset=

Description: tags and untagged are ORed. The page is cut after filtering, so
every page is full until the library runs out.
*/
func (handler *Handler) listAlbums(writer http.ResponseWriter, request *http.Request) {
	userID, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}
	ctx := request.Context()
	params := pagination.FromRequest(request)

	tagNames, valid := query.StringList(request.URL.Query().Get("tags"))
	if !valid {
		respond.Error(writer, request, validate.RequiredError("tags", "must be a JSON array of strings or a comma-separated list"))
		return
	}
	filter := NewAlbumFilter(tagNames, query.Bool(request.URL.Query().Get("untagged")))

	grouping, err := handler.libraryService.TagsGroupedByAlbum(ctx, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var keep func([]catalog.Album) []catalog.Album
	if !filter.IsEmpty() {
		keep = func(page []catalog.Album) []catalog.Album {
			return FilterAlbums(page, catalogAlbumID, grouping, filter)
		}
	}

	albums, err := session.SavedAlbums(ctx, params.Limit, params.Offset, keep)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	listening, err := handler.listeningSet(ctx, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	items := make([]TaggedAlbum, 0, len(albums))
	for _, album := range albums {
		items = append(items, TaggedAlbum{
			Album:             album,
			Tags:              nonNil(grouping.Tags(album.ID)),
			IsSavedAlbum:      true,
			IsInListeningList: listening[album.ID],
		})
	}

	respond.OK(writer, pagination.NewPage(items, params, 0))
}

// saveAlbum adds an album to the user's catalog library. PUT /api/me/album
func (handler *Handler) saveAlbum(writer http.ResponseWriter, request *http.Request) {
	handler.changeSaved(writer, request, Catalog.SaveAlbums)
}

// removeAlbum removes an album from the user's catalog library. DELETE /api/me/album
func (handler *Handler) removeAlbum(writer http.ResponseWriter, request *http.Request) {
	handler.changeSaved(writer, request, Catalog.RemoveAlbums)
}

func (handler *Handler) changeSaved(writer http.ResponseWriter, request *http.Request, change func(Catalog, context.Context, []string) error) {
	var input albumRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := validateAlbumInput(input.Album.SpotifyID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}

	if err := change(session, request.Context(), []string{input.Album.SpotifyID}); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

/*
searchAlbums searches the catalog for albums and EPs.

GET /api/me/album/search?q=&limit=&offset=
*/
func (handler *Handler) searchAlbums(writer http.ResponseWriter, request *http.Request) {
	keywords, ok := requiredKeywords(writer, request)
	if !ok {
		return
	}
	userID, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}
	params := pagination.FromRequest(request)

	albums, err := session.SearchAlbums(request.Context(), keywords, params.Limit, params.Offset)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	items, err := handler.decorate(request.Context(), userID, session, albums)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, pagination.NewPage(items, params, 0))
}

// getAlbum returns one album with the user's tags. GET /api/me/album/{albumId}
func (handler *Handler) getAlbum(writer http.ResponseWriter, request *http.Request) {
	albumID := requestutil.Param(request, "albumId")
	if err := validateAlbumInput(albumID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	userID, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}

	album, err := session.GetAlbum(request.Context(), albumID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	items, err := handler.decorate(request.Context(), userID, session, []catalog.Album{*album})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, items[0])
}

// searchArtists searches the catalog for artists. GET /api/me/artist/search?q=
func (handler *Handler) searchArtists(writer http.ResponseWriter, request *http.Request) {
	keywords, ok := requiredKeywords(writer, request)
	if !ok {
		return
	}
	_, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}
	params := pagination.FromRequest(request)

	page, err := session.SearchArtists(request.Context(), keywords, params.Limit, params.Offset)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, pagination.NewPage(page.Items, params, page.Total))
}

// # Tags

// listTags returns the user's distinct tags. GET /api/me/tag
func (handler *Handler) listTags(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	tags, err := handler.libraryService.ListUserTags(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, tags)
}

/*
tagAlbum applies a tag to an album.

POST /api/me/tag

Request:
  - Body: {"album": {"spotifyId"}, "tag": {"name"}}

Response:
  - 201: Tag
  - 400: VALIDATION_ERROR or DUPLICATE_TAG
*/
func (handler *Handler) tagAlbum(writer http.ResponseWriter, request *http.Request) {
	userID, input, ok := decodeTagRequest(writer, request)
	if !ok {
		return
	}

	tag, err := handler.libraryService.TagAlbum(request.Context(), userID, input.Album.SpotifyID, input.Tag.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, tag)
}

// untagAlbum removes a tag from an album. DELETE /api/me/tag
func (handler *Handler) untagAlbum(writer http.ResponseWriter, request *http.Request) {
	userID, input, ok := decodeTagRequest(writer, request)
	if !ok {
		return
	}

	if err := handler.libraryService.UntagAlbum(request.Context(), userID, input.Album.SpotifyID, input.Tag.Name); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Listening List

// listListeningList resolves the listening list to albums. GET /api/me/listening-list
func (handler *Handler) listListeningList(writer http.ResponseWriter, request *http.Request) {
	userID, session, ok := handler.begin(writer, request)
	if !ok {
		return
	}
	params := pagination.FromRequest(request)

	ids, err := handler.libraryService.ListeningList(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	window := ids[min(params.Offset, len(ids)):min(params.Offset+params.Limit, len(ids))]
	albums, err := session.GetAlbums(request.Context(), window)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	items := make([]UserAlbum, 0, len(albums))
	for _, album := range albums {
		items = append(items, UserAlbum{Album: album, IsInListeningList: true})
	}
	respond.OK(writer, pagination.NewPage(items, params, len(ids)))
}

// addToListeningList adds an album. POST /api/me/listening-list
func (handler *Handler) addToListeningList(writer http.ResponseWriter, request *http.Request) {
	handler.changeListening(writer, request, handler.libraryService.AddToListeningList)
}

// removeFromListeningList removes an album. DELETE /api/me/listening-list
func (handler *Handler) removeFromListeningList(writer http.ResponseWriter, request *http.Request) {
	handler.changeListening(writer, request, handler.libraryService.RemoveFromListeningList)
}

func (handler *Handler) changeListening(writer http.ResponseWriter, request *http.Request, change func(context.Context, string, string) error) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input albumRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := change(request.Context(), userID, input.Album.SpotifyID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Helpers

// begin resolves the caller and opens their catalog session, replying on failure.
func (handler *Handler) begin(writer http.ResponseWriter, request *http.Request) (string, Catalog, bool) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return "", nil, false
	}

	session, err := handler.openCatalog(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return "", nil, false
	}
	return userID, session, true
}

// decorate attaches tags, saved state and listening state to albums.
func (handler *Handler) decorate(ctx context.Context, userID string, session Catalog, albums []catalog.Album) ([]TaggedAlbum, error) {
	grouping, err := handler.libraryService.TagsGroupedByAlbum(ctx, userID)
	if err != nil {
		return nil, err
	}
	listening, err := handler.listeningSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := slice.Map(albums, func(album catalog.Album) string { return album.ID })

	saved := make([]bool, 0, len(ids))
	for _, chunk := range slice.Chunk(ids, constants.CatalogAlbumBatchSize) {
		block, err := session.ContainsSavedAlbums(ctx, chunk)
		if err != nil {
			return nil, err
		}
		saved = append(saved, block...)
	}

	items := make([]TaggedAlbum, len(albums))
	for index, album := range albums {
		items[index] = TaggedAlbum{
			Album:             album,
			Tags:              nonNil(grouping.Tags(album.ID)),
			IsSavedAlbum:      saved[index],
			IsInListeningList: listening[album.ID],
		}
	}
	return items, nil
}

func (handler *Handler) listeningSet(ctx context.Context, userID string) (map[string]bool, error) {
	ids, err := handler.libraryService.ListeningList(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func decodeTagRequest(writer http.ResponseWriter, request *http.Request) (string, tagRequest, bool) {
	var input tagRequest

	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return "", input, false
	}

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return "", input, false
	}
	return userID, input, true
}

func requiredKeywords(writer http.ResponseWriter, request *http.Request) (string, bool) {
	keywords := request.URL.Query().Get("q")

	validator := &validate.Validator{}
	validator.Required("q", keywords).MaxLen("q", keywords, maxKeywordLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return "", false
	}
	return keywords, true
}

func catalogAlbumID(album catalog.Album) string { return album.ID }

func nonNil(tags []Tag) []Tag {
	if tags == nil {
		return []Tag{}
	}
	return tags
}

var _ Catalog = (*catalog.Session)(nil)
