// Package assembler converts the raw payloads produced by retrieval
// strategies into models.Post and models.Author records.
//
// Four payload shapes are understood: the GraphQL documents captured from
// the web client, REST v1.1 objects, REST v2 responses with expansions and
// the embed endpoint's document. Each is normalized into a draft whose media
// is still remote; the draft's photos, videos, video previews and avatar are
// then materialized concurrently through the downloader pool.
//
// Media that fails to download is dropped from the record rather than
// failing the whole lookup. A video and its preview frame are kept or
// dropped together. Videos are represented by their highest-bitrate variant;
// a video offering no variant with a bitrate is omitted.
package assembler
