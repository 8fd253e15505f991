// Package recordings stores voice-over takes uploaded from the browser and
// muxes them onto their clips with ffmpeg, optionally over the clip's
// commentary-free residual.
package recordings
