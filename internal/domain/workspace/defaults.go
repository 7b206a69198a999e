package workspace

import "github.com/GriffinCanCode/livecode/internal/shared/id"

const defaultMarkup = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>My Code</title>
</head>
<body>
  <div class="container">
    <h1>Welcome to Code Compiler</h1>
    <p>Start coding and see your changes live!</p>
    <button id="btn">Click me</button>
  </div>
</body>
</html>`

const defaultStyle = `* {
  margin: 0;
  padding: 0;
  box-sizing: border-box;
}

body {
  font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  display: flex;
  align-items: center;
  justify-content: center;
  padding: 20px;
}

.container {
  background: white;
  padding: 40px;
  border-radius: 20px;
  box-shadow: 0 20px 60px rgba(0,0,0,0.3);
  text-align: center;
  max-width: 600px;
  animation: fadeIn 0.6s ease-out;
}

@keyframes fadeIn {
  from {
    opacity: 0;
    transform: translateY(20px);
  }
  to {
    opacity: 1;
    transform: translateY(0);
  }
}

h1 {
  color: #333;
  margin-bottom: 20px;
  font-size: 2.5rem;
}

p {
  color: #666;
  margin-bottom: 30px;
  font-size: 1.1rem;
}

button {
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  color: white;
  border: none;
  padding: 15px 40px;
  font-size: 1rem;
  border-radius: 50px;
  cursor: pointer;
  transition: transform 0.2s, box-shadow 0.2s;
  font-weight: 600;
}

button:hover {
  transform: translateY(-2px);
  box-shadow: 0 10px 25px rgba(102, 126, 234, 0.4);
}

button:active {
  transform: translateY(0);
}`

const defaultScript = `// Get the button element
const btn = document.getElementById('btn');

// Add click event listener
btn.addEventListener('click', () => {
  console.log('Button clicked! 🎉');
  
  // Change button text
  btn.textContent = 'Clicked!';
  
  // Log some info
  console.info('This is an info message');
  console.warn('This is a warning message');
  
  // Reset after 2 seconds
  setTimeout(() => {
    btn.textContent = 'Click me';
    console.log('Button reset');
  }, 2000);
});

console.log('JavaScript loaded successfully! ✅');`

// Defaults returns the starter project: one markup, one style and one script file.
func Defaults() []File {
	return []File{
		{ID: id.NewFileID(), Name: "index.html", Kind: Markup, Content: defaultMarkup},
		{ID: id.NewFileID(), Name: "style.css", Kind: Style, Content: defaultStyle},
		{ID: id.NewFileID(), Name: "script.js", Kind: Script, Content: defaultScript},
	}
}
