// Package color holds the palette and styles of cluster-inspection's terminal output.
//
// Colors adapt to the terminal background. lipgloss detects the background and the
// color profile on its own, honouring NO_COLOR; Initialize overrides the background
// detection when the caller knows better.
//
//	fmt.Println(color.TitleStyle.Render("Clusters"))
//	fmt.Println(color.Status("CrashLoopBackOff"))
package color
