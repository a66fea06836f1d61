package main

type Skill struct {
	Name string
	Icon string
}

var (
	HeroName     = "Mohammed Kamal"
	HeroSubtitle = "I create immersive web experiences."

	AboutTitle = "Frontend Developer & UI/UX Enthusiast"
	AboutMe    = `I’m a passionate developer with a strong eye for design, specializing in creating
	interactive experiences and functional interfaces using React, Three.js, and Framer Motion.
	I love bringing ideas to life with smooth animations and modern design principles.
	Let's build something amazing together!`

	ContactIntro = `I'm always open to new collaborations or just a friendly chat.
	Let's connect and create something amazing together!`

	Skills = []Skill{
		{"HTML5", "/static/icons/html5-original.svg"},
		{"CSS3", "/static/icons/css3-original.svg"},
		{"JavaScript", "/static/icons/javascript-original.svg"},
		{"React", "/static/icons/react-original.svg"},
		{"Next.js", "/static/icons/nextjs-original.svg"},
		{"Tailwind CSS", "/static/icons/tailwindcss-original.svg"},
		{"Framer Motion", "/static/icons/framermotion-original.svg"},
		{"Git", "/static/icons/git-original.svg"},
		{"Node.js", "/static/icons/nodejs-original.svg"},
		{"Sass", "/static/icons/sass-original.svg"},
		{"GraphQL", "/static/icons/graphql-plain.svg"},
		{"Postman", "/static/icons/postman-original.svg"},
	}
)
