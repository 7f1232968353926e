package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate docs/.
//
// @title           visiond API
// @version         1.0
// @description     Text-to-image generation (imagegend) and box-prompted segmentation (segmentd).
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
