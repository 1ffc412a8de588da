// Package pagecapture exports a rendered web document to a paginated PDF.
//
// An export measures a target element, inlines the images it references as
// data URIs, freezes animations, clones the document and rasterizes the
// clone offscreen, then slices the bitmap into page-sized bands laid out one
// per page:
//
//	exp, err := pagecapture.NewExporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exp.Close()
//
//	res, err := exp.ExportURL(ctx, "https://example.com/report", "report", nil)
//	res, err  = exp.ExportFile(ctx, "dashboard.html", "dashboard", nil)
//	res, err  = exp.ExportHTML(ctx, "<h1>Hello</h1>", "hello", nil)
//
// Use [ExportOptions] to pick the target, scale, background and paper:
//
//	opts := &pagecapture.ExportOptions{
//	    Selector:    "#main",
//	    Size:        pagecapture.Letter,
//	    Orientation: pagecapture.Landscape,
//	}
//
// A [Result] gives access to the document:
//
//	res.Filename()           // "report.pdf"
//	res.PageCount()          // ceil(H / rowsPerPage)
//	res.Skipped()            // images left as they were
//	res.Save(dir)            // atomic write into dir
//
// Images that fail to load or to convert never abort an export; they are
// reported on [Result.Skipped]. Fatal failures are typed: [CaptureError]
// (with [CauseTaint] or [CauseInternal]), [EmptyCaptureError] and
// [AssemblyError]. Whatever happens, the page's animations and scroll
// position are restored before an export returns.
//
// [Pipeline] runs the same steps on any [Surface] with any [Rasterizer], so
// callers that already drive a tab can export it with [NewChromeSurface].
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload].
package pagecapture
